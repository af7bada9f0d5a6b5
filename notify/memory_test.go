package notify

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_MemoryBus_Routes_By_Table_And_Op(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus(slog.Default())

	var inserts, any, other int
	bus.Subscribe(TableMessages, OpInsert, func(Event) { inserts++ })
	bus.Subscribe(TableMessages, OpAny, func(Event) { any++ })
	bus.Subscribe(TableProfiles, OpAny, func(Event) { other++ })

	bus.Publish(Event{Table: TableMessages, Op: OpInsert})
	bus.Publish(Event{Table: TableMessages, Op: OpUpdate})

	req.Equal(1, inserts)
	req.Equal(2, any)
	req.Zero(other)
}

func Test_MemoryBus_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus(slog.Default())

	var delivered int
	unsub := bus.Subscribe(TableTyping, OpAny, func(Event) { delivered++ })

	bus.Publish(Event{Table: TableTyping, Op: OpUpdate})
	unsub()
	bus.Publish(Event{Table: TableTyping, Op: OpUpdate})

	req.Equal(1, delivered)
}

func Test_MemoryBus_Subscribe_From_Handler_Does_Not_Deadlock(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus(slog.Default())

	var unsub Unsubscribe
	unsub = bus.Subscribe(TableProfiles, OpAny, func(Event) {
		unsub()
	})

	bus.Publish(Event{Table: TableProfiles, Op: OpUpdate})
	bus.Publish(Event{Table: TableProfiles, Op: OpUpdate})
	req.True(true) // reaching here means no deadlock
}
