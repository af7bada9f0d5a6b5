// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnknownAuthor is displayed when the author join fails to resolve,
// e.g. a profile removed out-of-band.
const UnknownAuthor = "Unknown"

// Message represents an immutable chat event.
// Author is a display join resolved at fetch time, not a stored column.
type Message struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Author    string
	Content   string
	CreatedAt time.Time
}

// OwnedBy reports whether the message was authored by the given profile.
// Own messages render right-aligned, all others left-aligned.
func (m Message) OwnedBy(profileID uuid.UUID) bool {
	return m.ProfileID == profileID
}
