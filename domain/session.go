package domain

import (
	"github.com/google/uuid"
)

// Session is the client-local identity pair persisted at login and
// cleared at logout. The zero value means "not logged in".
type Session struct {
	ProfileID uuid.UUID
	Username  string
}

// Valid reports whether both fields of the pair are present.
func (s Session) Valid() bool {
	return s.ProfileID != uuid.Nil && s.Username != ""
}
