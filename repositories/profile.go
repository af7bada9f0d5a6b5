//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"arattai/domain"
	"arattai/errors"
	"arattai/notify"
)

type IProfileRepository interface {
	CreateProfile(ctx context.Context, username string) (domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error)
	SetOnline(ctx context.Context, profileID uuid.UUID, online bool) error
	GetOnlineProfiles(ctx context.Context) ([]domain.Profile, error)
}

type ProfileRepository struct {
	db  *badger.DB
	bus notify.Bus
	log *slog.Logger
}

func NewProfileRepository(db *badger.DB, bus notify.Bus, log *slog.Logger) ProfileRepository {
	return ProfileRepository{db: db, bus: bus, log: log}
}

// diskProfile is the stored representation of a profile row.
type diskProfile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
}

// Profiles are stored under two keys:
//  1. "profile:id:{uuid}" holds the row itself.
//  2. "profile:name:{username}" holds the uuid, as an exact-match index
//     for the case-sensitive login lookup.
func profileKey(id uuid.UUID) []byte { return []byte("profile:id:" + id.String()) }
func usernameKey(name string) []byte { return []byte("profile:name:" + name) }

// CreateProfile persists a new profile with is_online=true, the state every
// freshly claimed username starts in.
func (r ProfileRepository) CreateProfile(_ context.Context, username string) (domain.Profile, error) {
	profile := domain.Profile{ID: uuid.New(), Username: username, IsOnline: true}
	data, err := json.Marshal(fromProfile(profile))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(profileKey(profile.ID), data); err != nil {
			return err
		}
		return txn.Set(usernameKey(username), []byte(profile.ID.String()))
	})
	if err != nil {
		return domain.Profile{}, err
	}

	r.bus.Publish(notify.Event{Table: notify.TableProfiles, Op: notify.OpInsert, RowID: profile.ID.String()})
	return profile, nil
}

func (r ProfileRepository) GetProfileByUsername(_ context.Context, username string) (domain.Profile, error) {
	var row diskProfile
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		rawID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(string(rawID))
		if err != nil {
			return fmt.Errorf("corrupt username index for %q: %w", username, err)
		}
		item, err = txn.Get(profileKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.Profile{}, errors.ErrProfileNotFound
		}
		return domain.Profile{}, err
	}
	return toProfile(row), nil
}

// SetOnline flips the presence flag in place. There is no heartbeat or
// expiry: a client that never flips it back stays online until corrected
// externally.
func (r ProfileRepository) SetOnline(_ context.Context, profileID uuid.UUID, online bool) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(profileID))
		if err != nil {
			return err
		}
		var row diskProfile
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		}); err != nil {
			return err
		}
		row.IsOnline = online
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return txn.Set(profileKey(profileID), data)
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrProfileNotFound
		}
		return err
	}

	r.bus.Publish(notify.Event{Table: notify.TableProfiles, Op: notify.OpUpdate, RowID: profileID.String()})
	return nil
}

// GetOnlineProfiles returns every profile with is_online=true, ordered by
// username ascending.
func (r ProfileRepository) GetOnlineProfiles(_ context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("profile:id:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row diskProfile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			})
			if err != nil {
				return err
			}
			if row.IsOnline {
				profiles = append(profiles, toProfile(row))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(profiles, func(a, b domain.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})
	return profiles, nil
}

func fromProfile(p domain.Profile) diskProfile {
	return diskProfile{ID: p.ID, Username: p.Username, IsOnline: p.IsOnline}
}

func toProfile(row diskProfile) domain.Profile {
	return domain.Profile{ID: row.ID, Username: row.Username, IsOnline: row.IsOnline}
}
