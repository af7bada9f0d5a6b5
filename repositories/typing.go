//go:generate go run go.uber.org/mock/mockgen -source=typing.go -destination=../mocks/mock_typing_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"arattai/domain"
	"arattai/notify"
)

type ITypingRepository interface {
	UpsertTyping(ctx context.Context, profileID uuid.UUID, isTyping bool) error
	GetTypingProfiles(ctx context.Context, exclude uuid.UUID) ([]domain.Profile, error)
}

type TypingRepository struct {
	db  *badger.DB
	bus notify.Bus
	log *slog.Logger
}

func NewTypingRepository(db *badger.DB, bus notify.Bus, log *slog.Logger) TypingRepository {
	return TypingRepository{db: db, bus: bus, log: log}
}

type diskTyping struct {
	ProfileID uuid.UUID `json:"profile_id"`
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}

func typingKey(id uuid.UUID) []byte { return []byte("typing:" + id.String()) }

// UpsertTyping writes the single typing row of a profile. Keying by profile
// id makes the upsert atomic: there is no check-then-act window in which a
// concurrent tab could create a duplicate row.
func (r TypingRepository) UpsertTyping(_ context.Context, profileID uuid.UUID, isTyping bool) error {
	row := diskTyping{ProfileID: profileID, IsTyping: isTyping, UpdatedAt: time.Now().UTC()}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	op := notify.OpUpdate
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(typingKey(profileID)); stderrors.Is(err, badger.ErrKeyNotFound) {
			op = notify.OpInsert
		}
		return txn.Set(typingKey(profileID), data)
	})
	if err != nil {
		return err
	}

	r.bus.Publish(notify.Event{Table: notify.TableTyping, Op: op, RowID: profileID.String()})
	return nil
}

// GetTypingProfiles returns the profiles currently typing, excluding the
// caller's own, with usernames joined for display. Rows whose join fails
// are skipped: a typing ghost without a profile has nothing to render.
func (r TypingRepository) GetTypingProfiles(_ context.Context, exclude uuid.UUID) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("typing:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row diskTyping
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			})
			if err != nil {
				return err
			}
			if !row.IsTyping || row.ProfileID == exclude {
				continue
			}
			item, err := txn.Get(profileKey(row.ProfileID))
			if err != nil {
				r.log.Debug("Typing join failed", "profile_id", row.ProfileID, "error", err)
				continue
			}
			var profileRow diskProfile
			if err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &profileRow)
			}); err != nil {
				return err
			}
			profiles = append(profiles, toProfile(profileRow))
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
