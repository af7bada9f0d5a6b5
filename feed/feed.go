// Package feed maintains the ordered message list under the
// invalidate-and-refetch policy: every insert notification triggers a full
// refetch, never an incremental append.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"arattai/domain"
	"arattai/errors"
	"arattai/notify"
	"arattai/repositories"
)

type Feed struct {
	messages repositories.IMessageRepository
	bus      notify.Bus
	log      *slog.Logger
	onChange func([]domain.Message)

	mu      sync.Mutex
	list    []domain.Message
	unsub   notify.Unsubscribe
	stopped bool
	// gen stamps each refetch; a result whose generation was superseded
	// by a newer fetch is discarded.
	gen uint64
}

// NewFeed builds a feed. onChange receives the fresh ordered list after
// every refetch; it may be nil.
func NewFeed(messages repositories.IMessageRepository, bus notify.Bus, log *slog.Logger,
	onChange func([]domain.Message)) *Feed {
	return &Feed{messages: messages, bus: bus, log: log, onChange: onChange}
}

// Send validates and inserts one message. The store assigns created_at.
// On failure the error surfaces to the caller so the draft is kept and can
// be retried; no automatic retry happens here.
func (f *Feed) Send(ctx context.Context, sess domain.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.ErrEmptyContent
	}
	if !sess.Valid() {
		return errors.ErrNotAuthenticated
	}
	if _, err := f.messages.StoreMessage(ctx, sess.ProfileID, text); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// Start subscribes to insert notifications on the messages table and
// performs the initial fetch. The notification payload is never used: the
// callback always answers with a full refetch.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	f.unsub = f.bus.Subscribe(notify.TableMessages, notify.OpInsert, func(notify.Event) {
		f.refresh(ctx)
	})
	f.mu.Unlock()

	f.refresh(ctx)
}

// Stop releases the subscription exactly once; late refetch results are
// discarded.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	unsub := f.unsub
	f.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Messages returns a snapshot of the last fetched list, ordered by
// created_at ascending.
func (f *Feed) Messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.list))
	copy(out, f.list)
	return out
}

func (f *Feed) refresh(ctx context.Context) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	messages, err := f.messages.GetMessages(ctx)
	if err != nil {
		f.log.Warn("Message feed refresh failed", "error", err)
		return
	}

	f.mu.Lock()
	if f.stopped || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.list = messages
	onChange := f.onChange
	f.mu.Unlock()

	if onChange != nil {
		onChange(messages)
	}
}
