package errors

import "fmt"

var (
	ErrEmptyUsername    = fmt.Errorf("username is empty")
	ErrInvalidUsername  = fmt.Errorf("username is invalid")
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrNotAuthenticated = fmt.Errorf("no active session")
	ErrNoSession        = fmt.Errorf("no persisted session")
	ErrProfileNotFound  = fmt.Errorf("profile not found")
)
