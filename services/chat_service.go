package services

import (
	"context"
	"log/slog"
	"time"

	"arattai/domain"
	"arattai/feed"
	"arattai/notify"
	"arattai/presence"
	"arattai/repositories"
	"arattai/session"
	"arattai/typing"
)

// Repositories bundles the three store repositories a chat deployment
// runs against, regardless of backend.
type Repositories struct {
	Profiles repositories.IProfileRepository
	Messages repositories.IMessageRepository
	Typing   repositories.ITypingRepository
}

type IChatService interface {
	Login(ctx context.Context, local session.Store, username string) (domain.Session, error)
	LoadSession(local session.Store) (domain.Session, error)
	Logout(ctx context.Context, local session.Store, sess domain.Session)
	NewView(sess domain.Session, callbacks ViewCallbacks) *ChatView
}

// ChatService wires the session manager and builds per-connection views.
type ChatService struct {
	repos         Repositories
	bus           notify.Bus
	log           *slog.Logger
	sessions      *session.Manager
	typingTimeout time.Duration
}

func NewChatService(repos Repositories, bus notify.Bus, log *slog.Logger, typingTimeout time.Duration) *ChatService {
	return &ChatService{
		repos:         repos,
		bus:           bus,
		log:           log,
		sessions:      session.NewManager(repos.Profiles, log),
		typingTimeout: typingTimeout,
	}
}

func (s *ChatService) Login(ctx context.Context, local session.Store, username string) (domain.Session, error) {
	return s.sessions.Login(ctx, local, username)
}

func (s *ChatService) LoadSession(local session.Store) (domain.Session, error) {
	return s.sessions.Load(local)
}

func (s *ChatService) Logout(ctx context.Context, local session.Store, sess domain.Session) {
	s.sessions.Logout(ctx, local, sess)
}

// ViewCallbacks notify the UI layer after each refetch. Any of them may be
// nil.
type ViewCallbacks struct {
	OnMessages func([]domain.Message)
	OnOnline   func([]domain.Profile)
	OnTyping   func([]domain.Profile)
}

// ChatView is the per-connection synchronization state: one presence
// tracker, one typing tracker and one message feed bound to a session.
type ChatView struct {
	Session  domain.Session
	Presence *presence.Tracker
	Typing   *typing.Tracker
	Feed     *feed.Feed
}

// NewView builds the trackers for one chat-view activation. Call Start to
// begin synchronizing and Stop on deactivation.
func (s *ChatService) NewView(sess domain.Session, callbacks ViewCallbacks) *ChatView {
	return &ChatView{
		Session:  sess,
		Presence: presence.NewTracker(s.repos.Profiles, s.bus, s.log, sess.ProfileID, callbacks.OnOnline),
		Typing:   typing.NewTracker(s.repos.Typing, s.bus, s.log, sess.ProfileID, s.typingTimeout, callbacks.OnTyping),
		Feed:     feed.NewFeed(s.repos.Messages, s.bus, s.log, callbacks.OnMessages),
	}
}

// Start activates all three trackers: presence flips the profile online,
// each tracker subscribes to its table and performs the initial fetch.
func (v *ChatView) Start(ctx context.Context) {
	v.Presence.Start(ctx)
	v.Typing.Start(ctx)
	v.Feed.Start(ctx)
}

// Stop tears the view down on every exit path: subscriptions released,
// pending typing timer cancelled, profile flipped offline best-effort.
func (v *ChatView) Stop() {
	v.Feed.Stop()
	v.Typing.Stop()
	v.Presence.Stop()
}

// Send posts a message for this view's session. Sending always idles the
// typing state first, matching the composer behavior.
func (v *ChatView) Send(ctx context.Context, text string) error {
	v.Typing.MessageSent()
	return v.Feed.Send(ctx, v.Session, text)
}
