package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"arattai/domain"
	"arattai/notify"
)

type MessageRepository struct {
	db  *sql.DB
	bus notify.Bus
	log *slog.Logger
}

func NewMessageRepository(db *sql.DB, bus notify.Bus, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, bus: bus, log: log}
}

// StoreMessage inserts a message; created_at is assigned by the database.
func (r MessageRepository) StoreMessage(ctx context.Context, profileID uuid.UUID, content string) (domain.Message, error) {
	message := domain.Message{ID: uuid.New(), ProfileID: profileID, Content: content}

	query :=
		`INSERT INTO messages (id, profile_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING created_at
		 `
	err := r.db.QueryRowContext(ctx, query, message.ID, message.ProfileID, message.Content).
		Scan(&message.CreatedAt)
	if err != nil {
		return domain.Message{}, fmt.Errorf("db error: %w", err)
	}

	r.bus.Publish(notify.Event{Table: notify.TableMessages, Op: notify.OpInsert, RowID: message.ID.String()})
	return message, nil
}

// GetMessages returns the full feed ordered by created_at ascending with
// the author username joined. A failed join falls back to the "Unknown"
// display label instead of erroring.
func (r MessageRepository) GetMessages(ctx context.Context) ([]domain.Message, error) {
	query :=
		`SELECT m.id, m.profile_id, m.content, m.created_at, p.username
		 FROM messages m
		 LEFT JOIN profiles p ON p.id = m.profile_id
		 ORDER BY m.created_at ASC
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var message domain.Message
		var author sql.NullString
		if err := rows.Scan(&message.ID, &message.ProfileID, &message.Content, &message.CreatedAt, &author); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		message.Author = domain.UnknownAuthor
		if author.Valid {
			message.Author = author.String
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
