package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"arattai/domain"
	"arattai/errors"
	"arattai/notify"
)

type ProfileRepository struct {
	db  *sql.DB
	bus notify.Bus
	log *slog.Logger
}

func NewProfileRepository(db *sql.DB, bus notify.Bus, log *slog.Logger) ProfileRepository {
	return ProfileRepository{db: db, bus: bus, log: log}
}

func (r ProfileRepository) CreateProfile(ctx context.Context, username string) (domain.Profile, error) {
	profile := domain.Profile{ID: uuid.New(), Username: username, IsOnline: true}

	query :=
		`INSERT INTO profiles (id, username, is_online)
		 VALUES ($1, $2, TRUE)
		 `
	if _, err := r.db.ExecContext(ctx, query, profile.ID, profile.Username); err != nil {
		return domain.Profile{}, fmt.Errorf("db error: %w", err)
	}

	r.bus.Publish(notify.Event{Table: notify.TableProfiles, Op: notify.OpInsert, RowID: profile.ID.String()})
	return profile, nil
}

func (r ProfileRepository) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	query :=
		`SELECT id, username, is_online FROM profiles
		 WHERE username = $1
		 `

	var profile domain.Profile
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&profile.ID, &profile.Username, &profile.IsOnline)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, errors.ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

func (r ProfileRepository) SetOnline(ctx context.Context, profileID uuid.UUID, online bool) error {
	query :=
		`UPDATE profiles SET is_online = $2
		 WHERE id = $1
		 `

	result, err := r.db.ExecContext(ctx, query, profileID, online)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return errors.ErrProfileNotFound
	}

	r.bus.Publish(notify.Event{Table: notify.TableProfiles, Op: notify.OpUpdate, RowID: profileID.String()})
	return nil
}

func (r ProfileRepository) GetOnlineProfiles(ctx context.Context) ([]domain.Profile, error) {
	query :=
		`SELECT id, username, is_online FROM profiles
		 WHERE is_online = TRUE
		 ORDER BY username ASC
		 `

	rows, err := r.db.QueryContext(ctx, query)
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
