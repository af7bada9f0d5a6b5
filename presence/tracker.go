// Package presence keeps the local user's is_online flag in step with the
// session lifecycle and mirrors the remote online-user set under the
// invalidate-and-refetch policy.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"arattai/domain"
	"arattai/notify"
	"arattai/repositories"
)

// writeTimeout bounds fire-and-forget presence writes so a hung store
// call cannot pile up goroutines forever.
const writeTimeout = 5 * time.Second

// Tracker follows presence for one connected client.
//
// There is no heartbeat or expiry mechanism: if the teardown hook never
// runs (abrupt process kill), the profile stays online until that user
// logs in again.
type Tracker struct {
	profiles repositories.IProfileRepository
	bus      notify.Bus
	log      *slog.Logger
	self     uuid.UUID
	onChange func([]domain.Profile)

	mu      sync.Mutex
	online  []domain.Profile
	unsub   notify.Unsubscribe
	stopped bool
	// lastWrite chains the background presence writes so the flag reaches
	// the store in issue order.
	lastWrite chan struct{}
	// gen stamps each refetch; a result whose generation was superseded
	// by a newer fetch is discarded.
	gen uint64
}

// NewTracker builds a tracker for the given profile. onChange receives the
// fresh online list after every refetch; it may be nil.
func NewTracker(profiles repositories.IProfileRepository, bus notify.Bus, log *slog.Logger,
	self uuid.UUID, onChange func([]domain.Profile)) *Tracker {
	return &Tracker{profiles: profiles, bus: bus, log: log, self: self, onChange: onChange}
}

// Start flips the local profile online, subscribes to any change on the
// profiles table, and performs the initial fetch.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.unsub = t.bus.Subscribe(notify.TableProfiles, notify.OpAny, func(notify.Event) {
		t.refresh(ctx)
	})
	t.mu.Unlock()

	t.SetOnline(t.self, true)
	t.refresh(ctx)
}

// Stop releases the subscription exactly once and flips the profile
// offline best-effort. Refetch results still in flight are discarded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	unsub := t.unsub
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	t.SetOnline(t.self, false)
}

// SetOnline updates the presence flag as a detached background write.
// Failures are logged, never surfaced to the caller. Each write waits for
// the previous one, so the offline write issued at Stop can never be
// overtaken by a slow online write from Start.
func (t *Tracker) SetOnline(profileID uuid.UUID, online bool) {
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
		if err := t.profiles.SetOnline(ctx, profileID, online); err != nil {
			t.log.Warn("Presence update failed", "profile_id", profileID, "online", online, "error", err)
		}
	}()
}

// Online returns a snapshot of the last fetched online list, ordered by
// username ascending.
func (t *Tracker) Online() []domain.Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Profile, len(t.online))
	copy(out, t.online)
	return out
}

func (t *Tracker) refresh(ctx context.Context) {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	profiles, err := t.profiles.GetOnlineProfiles(ctx)
	if err != nil {
		t.log.Warn("Online list refresh failed", "error", err)
		return
	}

	t.mu.Lock()
	if t.stopped || gen != t.gen {
		// A fetch that completes after teardown, or that a newer fetch
		// superseded, must not resurrect state.
		t.mu.Unlock()
		return
	}
	t.online = profiles
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(profiles)
	}
}
