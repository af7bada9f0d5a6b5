package domain

import (
	"time"

	"github.com/google/uuid"
)

// TypingStatus mirrors the composer state of one profile.
// At most one row per profile; absence is equivalent to not typing.
type TypingStatus struct {
	ProfileID uuid.UUID
	IsTyping  bool
	UpdatedAt time.Time
}
