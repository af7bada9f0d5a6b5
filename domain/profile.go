// Package domain contains core concepts of the chat system.
// This file defines Profile entities and presence invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"github.com/google/uuid"
)

// Profile is a claimed username with its presence flag.
// Profiles are created on first login and never deleted.
type Profile struct {
	ID       uuid.UUID
	Username string
	IsOnline bool
}
