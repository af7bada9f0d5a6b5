package web

import (
	stderrors "errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"arattai/errors"
)

type loginPageData struct {
	Notice   string
	Username string
}

// handleLoginPage renders the login view. A failed attempt redirects back
// here with a transient notice and the typed username preserved, so the
// input is not lost.
func (s *Server) handleLoginPage(c *fiber.Ctx) error {
	if _, err := s.svc.LoadSession(newCookieStore(c)); err == nil {
		return c.Redirect("/chat", fiber.StatusSeeOther)
	}
	return s.render(c, "login.html", loginPageData{
		Notice:   c.Query("notice"),
		Username: c.Query("username"),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	username := c.FormValue("username")

	_, err := s.svc.Login(c.Context(), newCookieStore(c), username)
	if err != nil {
		notice := "Login failed, please retry"
		switch {
		case stderrors.Is(err, errors.ErrEmptyUsername):
			notice = "Please enter a username to continue"
		case stderrors.Is(err, errors.ErrInvalidUsername):
			notice = "That username cannot be used"
		default:
			s.log.Warn("Login failed", "error", err)
		}
		query := url.Values{"notice": {notice}, "username": {username}}
		return c.Redirect("/?"+query.Encode(), fiber.StatusSeeOther)
	}

	return c.Redirect("/chat", fiber.StatusSeeOther)
}

type chatPageData struct {
	Username string
}

func (s *Server) handleChatPage(c *fiber.Ctx) error {
	sess, err := s.svc.LoadSession(newCookieStore(c))
	if err != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return s.render(c, "chat.html", chatPageData{Username: sess.Username})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	local := newCookieStore(c)
	sess, err := s.svc.LoadSession(local)
	if err == nil {
		s.svc.Logout(c.Context(), local, sess)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}
