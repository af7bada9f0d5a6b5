package notify

import (
	"log/slog"
	"sync"
)

// MemoryBus broadcasts change events to in-process subscribers.
//
// Like any bus implementation it provides best-effort fan-out only.
// Handlers run on the publisher's goroutine; they must be short and must
// tolerate events arriving after their Unsubscribe returned.
//
// MemoryBus is safe for concurrent use by multiple goroutines.
type MemoryBus struct {
	log  *slog.Logger
	mu   sync.RWMutex
	next int
	subs map[int]subscription
}

type subscription struct {
	table   Table
	op      Op
	handler func(Event)
}

func NewMemoryBus(log *slog.Logger) *MemoryBus {
	return &MemoryBus{log: log, subs: make(map[int]subscription)}
}

func (b *MemoryBus) Publish(e Event) {
	b.mu.RLock()
	var handlers []func(Event)
	for _, sub := range b.subs {
		if Matches(e, sub.table, sub.op) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	b.log.Debug("Publishing change event", "table", e.Table, "op", e.Op, "subscribers", len(handlers))
	// Handlers are invoked outside the lock so they can subscribe or
	// unsubscribe without deadlocking.
	for _, handler := range handlers {
		handler(e)
	}
}

func (b *MemoryBus) Subscribe(table Table, op Op, handler func(Event)) Unsubscribe {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscription{table: table, op: op, handler: handler}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
