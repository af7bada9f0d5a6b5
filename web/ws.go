package web

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/samber/lo"

	"arattai/domain"
	"arattai/errors"
	"arattai/services"
	"arattai/session"
	"arattai/typing"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	// outBuffer absorbs refetch bursts; a full buffer drops the frame,
	// the next refetch carries a fresher snapshot anyway.
	outBuffer = 16
)

// clientFrame is what the browser sends: composer input notifications and
// send requests.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// serverFrame is a full state snapshot or an error notice pushed to the
// browser. Snapshots always replace the previous ones, never patch them.
type serverFrame struct {
	Type     string        `json:"type"`
	Messages []messageView `json:"messages,omitempty"`
	Users    []userView    `json:"users,omitempty"`
	Count    int           `json:"count,omitempty"`
	Text     string        `json:"text,omitempty"`
}

type messageView struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Own       bool   `json:"own"`
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	You      bool   `json:"you"`
}

// handleWebSocket runs one chat-view activation: it loads the session from
// the cookies captured at upgrade, starts the per-connection trackers, and
// tears everything down on every exit path.
func (s *Server) handleWebSocket(conn *websocket.Conn) {
	local := frozenStore{
		session.KeyProfileID: conn.Cookies(cookiePrefix + session.KeyProfileID),
		session.KeyUsername:  conn.Cookies(cookiePrefix + session.KeyUsername),
	}
	sess, err := s.svc.LoadSession(local)
	if err != nil {
		_ = conn.WriteJSON(serverFrame{Type: "error", Text: "not logged in"})
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan serverFrame, outBuffer)
	done := make(chan struct{})

	push := func(frame serverFrame) {
		select {
		case out <- frame:
		case <-done:
		default:
			s.log.Debug("Dropping snapshot frame, client is slow", "profile_id", sess.ProfileID, "type", frame.Type)
		}
	}

	view := s.svc.NewView(sess, services.ViewCallbacks{
		OnMessages: func(messages []domain.Message) {
			push(snapshotMessages(messages, sess))
		},
		OnOnline: func(online []domain.Profile) {
			push(snapshotOnline(online, sess))
		},
		OnTyping: func(peers []domain.Profile) {
			push(serverFrame{Type: "typing", Text: typing.Indicator(peers)})
		},
	})

	view.Start(ctx)
	defer view.Stop()
	s.log.Info("Chat view opened", "profile_id", sess.ProfileID, "username", sess.Username)

	go s.writePump(conn, out, done)
	defer close(done)

	s.readPump(ctx, conn, view, sess, push)
	s.log.Info("Chat view closed", "profile_id", sess.ProfileID)
}

// readPump consumes client frames until the connection drops. It runs on
// the handler goroutine; returning triggers the deferred teardown.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, view *services.ChatView, sess domain.Session, push func(serverFrame)) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Websocket read error", "profile_id", sess.ProfileID, "error", err)
			}
			return
		}

		switch frame.Type {
		case "typing":
			view.Typing.Input()
		case "send":
			if err := view.Send(ctx, frame.Text); err != nil {
				// Surface to the user and keep the draft client-side;
				// no automatic retry.
				notice := "Failed to send message"
				if stderrors.Is(err, errors.ErrEmptyContent) {
					notice = "Cannot send an empty message"
				}
				s.log.Warn("Send failed", "profile_id", sess.ProfileID, "error", err)
				push(serverFrame{Type: "error", Text: notice})
			}
		default:
			s.log.Debug("Ignoring unknown client frame", "type", frame.Type)
		}
	}
}

// writePump owns all writes after the handshake, so snapshot pushes and
// pings never interleave on the wire.
func (s *Server) writePump(conn *websocket.Conn, out <-chan serverFrame, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func snapshotMessages(messages []domain.Message, sess domain.Session) serverFrame {
	return serverFrame{
		Type: "messages",
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageView {
			return messageView{
				ID:        m.ID.String(),
				Author:    m.Author,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
				Own:       m.OwnedBy(sess.ProfileID),
			}
		}),
	}
}

func snapshotOnline(online []domain.Profile, sess domain.Session) serverFrame {
	return serverFrame{
		Type:  "online",
		Count: len(online),
		Users: lo.Map(online, func(p domain.Profile, _ int) userView {
			return userView{
				ID:       p.ID.String(),
				Username: p.Username,
				You:      p.ID == sess.ProfileID,
			}
		}),
	}
}
