// Package typing implements the two-state composer machine (Idle, Typing)
// and mirrors the remote typing-user set.
//
// Local side: the first input event upserts is_typing=true and arms an
// inactivity timer; further input only re-arms the timer; expiry or a sent
// message upserts is_typing=false. Remote side: any change on the
// typing_status table triggers a full refetch of who else is typing.
package typing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"arattai/domain"
	"arattai/notify"
	"arattai/repositories"
)

// DefaultTimeout is the inactivity window after which the local user
// stops being reported as typing.
const DefaultTimeout = 2000 * time.Millisecond

const writeTimeout = 5 * time.Second

type Tracker struct {
	typing   repositories.ITypingRepository
	bus      notify.Bus
	log      *slog.Logger
	self     uuid.UUID
	timeout  time.Duration
	onChange func([]domain.Profile)

	mu        sync.Mutex
	typingNow bool
	lastInput time.Time
	timer     *time.Timer
	peers     []domain.Profile
	unsub     notify.Unsubscribe
	stopped   bool
	// lastWrite chains the background upserts so the flag reaches the
	// store in issue order.
	lastWrite chan struct{}
	// gen stamps each refetch; a result whose generation was superseded
	// by a newer fetch is discarded.
	gen uint64
}

// NewTracker builds a tracker for the given profile. timeout <= 0 selects
// DefaultTimeout; tests inject a shorter window. onChange receives the
// fresh peer list after every refetch and may be nil.
func NewTracker(typing repositories.ITypingRepository, bus notify.Bus, log *slog.Logger,
	self uuid.UUID, timeout time.Duration, onChange func([]domain.Profile)) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{typing: typing, bus: bus, log: log, self: self, timeout: timeout, onChange: onChange}
}

func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.unsub = t.bus.Subscribe(notify.TableTyping, notify.OpAny, func(notify.Event) {
		t.refresh(ctx)
	})
	t.mu.Unlock()

	t.refresh(ctx)
}

// Stop cancels any pending inactivity timer and releases the subscription,
// so no stale callback fires after teardown. The remote typing row is left
// as-is: rows of vanished clients are never expired.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	unsub := t.unsub
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Input records one local text-input change event. The first event of a
// burst issues the is_typing=true upsert; every event re-arms the
// inactivity timer without re-issuing the write.
func (t *Tracker) Input() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	first := !t.typingNow
	t.typingNow = true
	t.lastInput = time.Now()
	if t.timer == nil {
		t.timer = time.AfterFunc(t.timeout, t.expire)
	} else {
		t.timer.Reset(t.timeout)
	}
	t.mu.Unlock()

	if first {
		t.upsert(true)
	}
}

// MessageSent transitions to Idle immediately, without waiting for the
// inactivity window.
func (t *Tracker) MessageSent() {
	t.setIdle()
}

func (t *Tracker) expire() {
	t.mu.Lock()
	if t.stopped || !t.typingNow {
		t.mu.Unlock()
		return
	}
	// The timer may fire concurrently with a re-arming Input; only idle
	// out when the window really elapsed without input.
	if remaining := t.timeout - time.Since(t.lastInput); remaining > 0 {
		t.timer.Reset(remaining)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.setIdle()
}

func (t *Tracker) setIdle() {
	t.mu.Lock()
	if t.stopped || !t.typingNow {
		t.mu.Unlock()
		return
	}
	t.typingNow = false
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	t.upsert(false)
}

// upsert mirrors the local flag to the store as a detached background
// write; failures are logged and swallowed so typing never blocks the
// composer. Each write waits for the previous one, otherwise a slow
// is_typing=true could land after the is_typing=false that followed it
// and strand the remote row at true.
func (t *Tracker) upsert(isTyping bool) {
	t.mu.Lock()
	prev := t.lastWrite
	done := make(chan struct{})
	t.lastWrite = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := t.typing.UpsertTyping(ctx, t.self, isTyping); err != nil {
			t.log.Warn("Typing update failed", "profile_id", t.self, "is_typing", isTyping, "error", err)
		}
	}()
}

// Peers returns a snapshot of the other profiles currently typing.
func (t *Tracker) Peers() []domain.Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Profile, len(t.peers))
	copy(out, t.peers)
	return out
}

// Indicator renders the typing line, e.g. "alice is typing..." or
// "alice, bob are typing...". An empty peer set renders nothing.
func (t *Tracker) Indicator() string {
	peers := t.Peers()
	return Indicator(peers)
}

// Indicator formats a typing line for the given profiles.
func Indicator(peers []domain.Profile) string {
	if len(peers) == 0 {
		return ""
	}
	names := lo.Map(peers, func(p domain.Profile, _ int) string {
		return p.Username
	})
	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}
	return fmt.Sprintf("%s %s typing...", strings.Join(names, ", "), verb)
}

func (t *Tracker) refresh(ctx context.Context) {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	peers, err := t.typing.GetTypingProfiles(ctx, t.self)
	if err != nil {
		t.log.Warn("Typing list refresh failed", "error", err)
		return
	}

	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.peers = peers
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(peers)
	}
}
