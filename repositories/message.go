//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"arattai/domain"
	"arattai/notify"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, profileID uuid.UUID, content string) (domain.Message, error)
	GetMessages(ctx context.Context) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	bus notify.Bus
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, bus notify.Bus, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, bus: bus, log: log}
}

type diskMessage struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreMessage persists a message and assigns its creation timestamp.
// The key is formatted as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological iteration using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(_ context.Context, profileID uuid.UUID, content string) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		ProfileID: profileID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("msg:%019d:%s", message.CreatedAt.UnixNano(), message.ID)
	data, err := json.Marshal(diskMessage{
		ID:        message.ID,
		ProfileID: message.ProfileID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return domain.Message{}, err
	}

	m.bus.Publish(notify.Event{Table: notify.TableMessages, Op: notify.OpInsert, RowID: message.ID.String()})
	return message, nil
}

// GetMessages retrieves the full feed ordered by created_at ascending.
// Thanks to the padded timestamp in the key, messages come out of the
// prefix scan already sorted by time. Author usernames are joined from the
// profile rows in the same read transaction; an unresolved join yields the
// "Unknown" label rather than an error.
func (m MessageRepository) GetMessages(_ context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		authors := map[uuid.UUID]string{}
		prefix := []byte("msg:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			})
			if err != nil {
				return err
			}
			author, ok := authors[row.ProfileID]
			if !ok {
				author = m.resolveAuthor(txn, row.ProfileID)
				authors[row.ProfileID] = author
			}
			messages = append(messages, domain.Message{
				ID:        row.ID,
				ProfileID: row.ProfileID,
				Author:    author,
				Content:   row.Content,
				CreatedAt: row.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m MessageRepository) resolveAuthor(txn *badger.Txn, profileID uuid.UUID) string {
	item, err := txn.Get(profileKey(profileID))
	if err != nil {
		m.log.Debug("Author join failed", "profile_id", profileID, "error", err)
		return domain.UnknownAuthor
	}
	var row diskProfile
	if err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &row)
	}); err != nil {
		m.log.Debug("Author join failed", "profile_id", profileID, "error", err)
		return domain.UnknownAuthor
	}
	return row.Username
}
