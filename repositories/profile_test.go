package repositories

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"arattai/domain"
	"arattai/errors"
	"arattai/notify"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_And_Lookup_Profile(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := notify.NewMemoryBus(slog.Default())
	repository := NewProfileRepository(db, bus, slog.Default())
	ctx := context.Background()

	created, err := repository.CreateProfile(ctx, "alice")
	req.NoError(err)
	req.NotEqual(uuid.Nil, created.ID)
	req.True(created.IsOnline)

	found, err := repository.GetProfileByUsername(ctx, "alice")
	req.NoError(err)
	req.Equal(created, found)
}

func Test_Lookup_Is_Case_Sensitive(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewProfileRepository(db, notify.NewMemoryBus(slog.Default()), slog.Default())
	ctx := context.Background()

	_, err := repository.CreateProfile(ctx, "Alice")
	req.NoError(err)

	_, err = repository.GetProfileByUsername(ctx, "alice")
	req.ErrorIs(err, errors.ErrProfileNotFound)
}

func Test_SetOnline_Flips_Flag(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewProfileRepository(db, notify.NewMemoryBus(slog.Default()), slog.Default())
	ctx := context.Background()

	created, err := repository.CreateProfile(ctx, "bob")
	req.NoError(err)

	req.NoError(repository.SetOnline(ctx, created.ID, false))
	found, err := repository.GetProfileByUsername(ctx, "bob")
	req.NoError(err)
	req.False(found.IsOnline)

	req.NoError(repository.SetOnline(ctx, created.ID, true))
	found, err = repository.GetProfileByUsername(ctx, "bob")
	req.NoError(err)
	req.True(found.IsOnline)
}

func Test_SetOnline_Unknown_Profile(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewProfileRepository(db, notify.NewMemoryBus(slog.Default()), slog.Default())

	err := repository.SetOnline(context.Background(), uuid.New(), true)
	req.ErrorIs(err, errors.ErrProfileNotFound)
}

func Test_Online_List_Ordered_By_Username(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewProfileRepository(db, notify.NewMemoryBus(slog.Default()), slog.Default())
	ctx := context.Background()

	for _, name := range []string{"clara", "alice", "bob"} {
		_, err := repository.CreateProfile(ctx, name)
		req.NoError(err)
	}
	offline, err := repository.CreateProfile(ctx, "dave")
	req.NoError(err)
	req.NoError(repository.SetOnline(ctx, offline.ID, false))

	online, err := repository.GetOnlineProfiles(ctx)
	req.NoError(err)
	usernames := lo.Map(online, func(p domain.Profile, _ int) string { return p.Username })
	req.Equal([]string{"alice", "bob", "clara"}, usernames)
}

func Test_Profile_Writes_Publish_Events(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := notify.NewMemoryBus(slog.Default())
	repository := NewProfileRepository(db, bus, slog.Default())
	ctx := context.Background()

	var events []notify.Event
	bus.Subscribe(notify.TableProfiles, notify.OpAny, func(e notify.Event) {
		events = append(events, e)
	})

	created, err := repository.CreateProfile(ctx, "alice")
	req.NoError(err)
	req.NoError(repository.SetOnline(ctx, created.ID, false))

	req.Len(events, 2)
	req.Equal(notify.OpInsert, events[0].Op)
	req.Equal(notify.OpUpdate, events[1].Op)
}
