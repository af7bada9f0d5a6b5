//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session.go -package=mocks

// Package session manages the client-local identity pair: a
// {profile_id, username} couple claimed at login, persisted across page
// reloads on the client device, and cleared at logout.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"arattai/domain"
	"arattai/errors"
	"arattai/repositories"
)

// Keys of the persisted pair. They match the table columns they mirror.
const (
	KeyProfileID = "profile_id"
	KeyUsername  = "username"
)

// Store is the durable client-local key-value storage holding the session
// pair. The web layer backs it with cookies; the embedded deployment backs
// it with a local badger database.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

var validate = validator.New()

type loginRequest struct {
	Username string `validate:"required,min=1,max=32"`
}

type IManager interface {
	Login(ctx context.Context, local Store, username string) (domain.Session, error)
	Load(local Store) (domain.Session, error)
	Logout(ctx context.Context, local Store, sess domain.Session)
}

type Manager struct {
	profiles repositories.IProfileRepository
	log      *slog.Logger
}

func NewManager(profiles repositories.IProfileRepository, log *slog.Logger) *Manager {
	return &Manager{profiles: profiles, log: log}
}

// Login claims a username: it reuses the existing profile on an exact
// case-sensitive match, creates one otherwise, flips is_online to true
// either way, and persists the identity pair in the local store.
func (m *Manager) Login(ctx context.Context, local Store, username string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Session{}, errors.ErrEmptyUsername
	}
	if err := validate.Struct(loginRequest{Username: username}); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidUsername, err)
	}

	profile, err := m.profiles.GetProfileByUsername(ctx, username)
	switch {
	case err == nil:
		if err := m.profiles.SetOnline(ctx, profile.ID, true); err != nil {
			return domain.Session{}, fmt.Errorf("login failed: %w", err)
		}
	case stderrors.Is(err, errors.ErrProfileNotFound):
		profile, err = m.profiles.CreateProfile(ctx, username)
		if err != nil {
			return domain.Session{}, fmt.Errorf("login failed: %w", err)
		}
	default:
		return domain.Session{}, fmt.Errorf("login failed: %w", err)
	}

	if err := local.Set(KeyProfileID, profile.ID.String()); err != nil {
		return domain.Session{}, fmt.Errorf("persisting session failed: %w", err)
	}
	if err := local.Set(KeyUsername, profile.Username); err != nil {
		return domain.Session{}, fmt.Errorf("persisting session failed: %w", err)
	}

	m.log.Info("Session opened", "profile_id", profile.ID, "username", profile.Username)
	return domain.Session{ProfileID: profile.ID, Username: profile.Username}, nil
}

// Load reads the persisted pair. ErrNoSession is returned when either
// field is absent; the caller redirects to the login view.
func (m *Manager) Load(local Store) (domain.Session, error) {
	rawID, ok := local.Get(KeyProfileID)
	if !ok || rawID == "" {
		return domain.Session{}, errors.ErrNoSession
	}
	username, ok := local.Get(KeyUsername)
	if !ok || username == "" {
		return domain.Session{}, errors.ErrNoSession
	}
	profileID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Session{}, errors.ErrNoSession
	}
	return domain.Session{ProfileID: profileID, Username: username}, nil
}

// Logout flips the profile offline best-effort and clears the pair.
// The presence update failure is logged and swallowed: logout must always
// succeed locally.
func (m *Manager) Logout(ctx context.Context, local Store, sess domain.Session) {
	if sess.Valid() {
		if err := m.profiles.SetOnline(ctx, sess.ProfileID, false); err != nil {
			m.log.Warn("Failed to flip profile offline at logout", "profile_id", sess.ProfileID, "error", err)
		}
	}
	if err := local.Delete(KeyProfileID); err != nil {
		m.log.Warn("Failed to clear session key", "key", KeyProfileID, "error", err)
	}
	if err := local.Delete(KeyUsername); err != nil {
		m.log.Warn("Failed to clear session key", "key", KeyUsername, "error", err)
	}
}
