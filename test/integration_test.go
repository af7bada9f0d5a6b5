package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"arattai/domain"
	"arattai/notify"
	"arattai/repositories"
	"arattai/services"
	"arattai/session"
)

// client bundles one user's local store and view, like one browser tab.
type client struct {
	local session.BadgerStore
	sess  domain.Session
	view  *services.ChatView
}

func newService(t *testing.T) *services.ChatService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	bus := notify.NewMemoryBus(log)
	repos := services.Repositories{
		Profiles: repositories.NewProfileRepository(db, bus, log),
		Messages: repositories.NewMessageRepository(db, bus, log),
		Typing:   repositories.NewTypingRepository(db, bus, log),
	}
	return services.NewChatService(repos, bus, log, 150*time.Millisecond)
}

func connect(t *testing.T, svc *services.ChatService, username string) *client {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	localDB, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = localDB.Close() })

	local := session.NewBadgerStore(localDB)
	sess, err := svc.Login(ctx, local, username)
	req.NoError(err)

	view := svc.NewView(sess, services.ViewCallbacks{})
	view.Start(ctx)
	t.Cleanup(view.Stop)

	return &client{local: local, sess: sess, view: view}
}

func Test_Scenario_Message_Fanout(t *testing.T) {
	req := require.New(t)
	svc := newService(t)
	ctx := context.Background()

	alice := connect(t, svc, "alice")
	bob := connect(t, svc, "bob")
	req.NotEqual(alice.sess.ProfileID, bob.sess.ProfileID)

	// Both views see each other online.
	req.Eventually(func() bool {
		usernames := lo.Map(bob.view.Presence.Online(), func(p domain.Profile, _ int) string { return p.Username })
		return len(usernames) == 2 && usernames[0] == "alice" && usernames[1] == "bob"
	}, time.Second, 10*time.Millisecond)

	// Alice sends; Bob's view picks it up through the insert notification.
	req.NoError(alice.view.Send(ctx, "hi"))

	req.Eventually(func() bool {
		messages := bob.view.Feed.Messages()
		return len(messages) == 1 &&
			messages[0].Content == "hi" &&
			messages[0].Author == "alice" &&
			!messages[0].OwnedBy(bob.sess.ProfileID) &&
			messages[0].OwnedBy(alice.sess.ProfileID)
	}, time.Second, 10*time.Millisecond)
}

func Test_Scenario_Typing_Indicator(t *testing.T) {
	req := require.New(t)
	svc := newService(t)

	alice := connect(t, svc, "alice")
	bob := connect(t, svc, "bob")

	// Alice types without sending: Bob sees the indicator.
	alice.view.Typing.Input()

	req.Eventually(func() bool {
		return bob.view.Typing.Indicator() == "alice is typing..."
	}, time.Second, 10*time.Millisecond)

	// Alice herself never appears in her own indicator.
	req.Empty(alice.view.Typing.Indicator())

	// After the inactivity window the indicator disappears.
	req.Eventually(func() bool {
		return bob.view.Typing.Indicator() == ""
	}, time.Second, 10*time.Millisecond)
}

func Test_Scenario_Typing_Cleared_By_Send(t *testing.T) {
	req := require.New(t)
	svc := newService(t)
	ctx := context.Background()

	alice := connect(t, svc, "alice")
	bob := connect(t, svc, "bob")

	alice.view.Typing.Input()
	req.Eventually(func() bool {
		return bob.view.Typing.Indicator() == "alice is typing..."
	}, time.Second, 10*time.Millisecond)

	req.NoError(alice.view.Send(ctx, "done typing"))
	req.Eventually(func() bool {
		return bob.view.Typing.Indicator() == ""
	}, time.Second, 10*time.Millisecond)
}

func Test_Scenario_Abrupt_Kill_Leaves_Profile_Online(t *testing.T) {
	req := require.New(t)
	svc := newService(t)

	alice := connect(t, svc, "alice")
	bob := connect(t, svc, "bob")

	req.Eventually(func() bool {
		return len(bob.view.Presence.Online()) == 2
	}, time.Second, 10*time.Millisecond)

	// Simulated tab kill: the view is dropped without Stop ever running,
	// so the offline hook never fires. With no heartbeat, alice stays
	// online indefinitely. Expected, not a defect to patch.
	alice.view = nil

	time.Sleep(200 * time.Millisecond)
	usernames := lo.Map(bob.view.Presence.Online(), func(p domain.Profile, _ int) string { return p.Username })
	req.Contains(usernames, "alice")
}

func Test_Logout_Disappears_From_Online_List(t *testing.T) {
	req := require.New(t)
	svc := newService(t)
	ctx := context.Background()

	alice := connect(t, svc, "alice")
	bob := connect(t, svc, "bob")

	req.Eventually(func() bool {
		return len(bob.view.Presence.Online()) == 2
	}, time.Second, 10*time.Millisecond)

	alice.view.Stop()
	svc.Logout(ctx, alice.local, alice.sess)

	req.Eventually(func() bool {
		usernames := lo.Map(bob.view.Presence.Online(), func(p domain.Profile, _ int) string { return p.Username })
		return len(usernames) == 1 && usernames[0] == "bob"
	}, time.Second, 10*time.Millisecond)

	_, err := svc.LoadSession(alice.local)
	req.Error(err)
}
