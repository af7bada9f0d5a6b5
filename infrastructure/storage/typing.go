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

type TypingRepository struct {
	db  *sql.DB
	bus notify.Bus
	log *slog.Logger
}

func NewTypingRepository(db *sql.DB, bus notify.Bus, log *slog.Logger) TypingRepository {
	return TypingRepository{db: db, bus: bus, log: log}
}

// UpsertTyping writes the typing row atomically. ON CONFLICT on the
// profile_id primary key closes the duplicate-row race a check-then-act
// sequence would leave open under concurrent tabs.
func (r TypingRepository) UpsertTyping(ctx context.Context, profileID uuid.UUID, isTyping bool) error {
	query :=
		`INSERT INTO typing_status (profile_id, is_typing, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (profile_id)
		 DO UPDATE SET is_typing = EXCLUDED.is_typing, updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)
		 `

	var inserted bool
	if err := r.db.QueryRowContext(ctx, query, profileID, isTyping).Scan(&inserted); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	op := notify.OpUpdate
	if inserted {
		op = notify.OpInsert
	}
	r.bus.Publish(notify.Event{Table: notify.TableTyping, Op: op, RowID: profileID.String()})
	return nil
}

func (r TypingRepository) GetTypingProfiles(ctx context.Context, exclude uuid.UUID) ([]domain.Profile, error) {
	query :=
		`SELECT p.id, p.username, p.is_online
		 FROM typing_status t
		 JOIN profiles p ON p.id = t.profile_id
		 WHERE t.is_typing = TRUE AND t.profile_id != $1
		 ORDER BY p.username ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, exclude)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var profile domain.Profile
		if err := rows.Scan(&profile.ID, &profile.Username, &profile.IsOnline); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}
