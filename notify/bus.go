//go:generate go run go.uber.org/mock/mockgen -source=bus.go -destination=../mocks/mock_bus.go -package=mocks

// Package notify carries row-level change notifications between writers
// and the trackers that refetch on invalidation.
//
// The bus is a signal channel, not a data channel: subscribers never read
// the payload beyond routing, they always answer with a full refetch.
// Delivery is best-effort with no ordering, durability or retry guarantees.
package notify

// Table identifies one of the three store tables.
type Table string

const (
	TableProfiles Table = "profiles"
	TableMessages Table = "messages"
	TableTyping   Table = "typing_status"
)

// Op is the operation that touched a row. Publishers always publish a
// concrete operation; OpAny is only meaningful on the subscribe side.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpAny    Op = "*"
)

// Event is a change notification. RowID is informational (logging only);
// no subscriber may rely on it for incremental state updates.
type Event struct {
	Table Table  `json:"table"`
	Op    Op     `json:"op"`
	RowID string `json:"row_id,omitempty"`
}

// Unsubscribe releases a subscription. It must be safe to call exactly
// once per Subscribe; events already in flight when it returns are dropped
// by the subscriber, not redelivered.
type Unsubscribe func()

// Bus fans change events out to interested subscribers.
type Bus interface {
	Publish(e Event)
	Subscribe(table Table, op Op, handler func(Event)) Unsubscribe
}

// Matches reports whether a published event should reach a subscription
// registered for the given table and operation.
func Matches(e Event, table Table, op Op) bool {
	return e.Table == table && (op == OpAny || e.Op == op)
}
