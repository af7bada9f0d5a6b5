// Package natsbus implements the change-notification bus on NATS core
// subjects, so separate server processes sharing one Postgres store still
// observe each other's writes. Subjects follow "store.<table>.<op>".
//
// Delivery is at-most-once: events are invalidation hints, not durable
// state, and a missed one only delays the next refetch.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"arattai/notify"
)

const subjectPrefix = "store"

type Bus struct {
	nc  *nats.Conn
	log *slog.Logger
}

// New connects to the NATS server at url.
func New(url string, log *slog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bus{nc: nc, log: log}, nil
}

func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

func (b *Bus) Publish(e notify.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.log.Error("Failed to marshal change event", "error", err)
		return
	}
	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, e.Table, e.Op)
	if err := b.nc.Publish(subject, data); err != nil {
		// Best-effort: a lost notification costs one refetch, not data.
		b.log.Error("Failed to publish change event", "subject", subject, "error", err)
	}
}

func (b *Bus) Subscribe(table notify.Table, op notify.Op, handler func(notify.Event)) notify.Unsubscribe {
	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, table, op)
	if op == notify.OpAny {
		subject = fmt.Sprintf("%s.%s.*", subjectPrefix, table)
	}

	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var e notify.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			b.log.Error("Dropping malformed change event", "subject", msg.Subject, "error", err)
			return
		}
		handler(e)
	})
	if err != nil {
		// Subscription setup failure is indistinguishable from "no events
		// yet": the subscriber simply stays on stale data until its next
		// successful refresh trigger.
		b.log.Error("Failed to subscribe", "subject", subject, "error", err)
		return func() {}
	}

	b.log.Debug("Subscribed to change events", "subject", subject)
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Debug("Unsubscribe failed", "subject", subject, "error", err)
		}
	}
}
