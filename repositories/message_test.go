package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"arattai/domain"
	"arattai/notify"
)

func Test_Record_Multiple_Messages_In_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := notify.NewMemoryBus(slog.Default())
	log := slog.Default()
	profiles := NewProfileRepository(db, bus, log)
	repository := NewMessageRepository(db, bus, log)
	ctx := context.Background()

	alice, err := profiles.CreateProfile(ctx, "alice")
	req.NoError(err)

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err = repository.StoreMessage(ctx, alice.ID, content)
		req.NoError(err)
	}

	fetched, err := repository.GetMessages(ctx)
	req.NoError(err)
	req.Len(fetched, len(contents))
	for i, message := range fetched {
		req.Equal(contents[i], message.Content)
		req.Equal("alice", message.Author)
		req.False(message.CreatedAt.IsZero())
		if i > 0 {
			req.False(message.CreatedAt.Before(fetched[i-1].CreatedAt))
		}
	}
}

func Test_Unresolved_Author_Falls_Back_To_Unknown(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := notify.NewMemoryBus(slog.Default())
	repository := NewMessageRepository(db, bus, slog.Default())
	ctx := context.Background()

	// Profile id never registered: simulates a profile removed out-of-band.
	ghost := uuid.New()
	stored, err := repository.StoreMessage(ctx, ghost, "orphan")
	req.NoError(err)
	req.NotEqual(time.Time{}, stored.CreatedAt)

	fetched, err := repository.GetMessages(ctx)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(domain.UnknownAuthor, fetched[0].Author)
}

func Test_StoreMessage_Publishes_Insert_Event(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := notify.NewMemoryBus(slog.Default())
	repository := NewMessageRepository(db, bus, slog.Default())
	profiles := NewProfileRepository(db, bus, slog.Default())
	ctx := context.Background()

	var events []notify.Event
	bus.Subscribe(notify.TableMessages, notify.OpInsert, func(e notify.Event) {
		events = append(events, e)
	})

	alice, err := profiles.CreateProfile(ctx, "alice")
	req.NoError(err)
	stored, err := repository.StoreMessage(ctx, alice.ID, "hi")
	req.NoError(err)

	req.Len(events, 1)
	req.Equal(stored.ID.String(), events[0].RowID)
}
