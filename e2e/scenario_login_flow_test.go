package e2e

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type testLoginFlowSuite struct {
	BaseHTTPSuite
}

func TestLoginFlowSuite(t *testing.T) {
	suite.Run(t, &testLoginFlowSuite{})
}

func (s *testLoginFlowSuite) TestFullLoginFlow() {
	username := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())

	s.Run("Step 0: Login page is served to anonymous visitors", func() {
		s.Step(s.T(), "GET / without a session")
		resp, body := s.Get("/")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Require().Contains(body, "username")
	})

	s.Run("Step 1: Chat page redirects anonymous visitors to login", func() {
		s.Step(s.T(), "GET /chat without a session")
		resp, _ := s.Get("/chat")
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
		s.Require().Equal("/", resp.Header.Get("Location"))
	})

	s.Run("Step 2: Empty username is rejected with a notice", func() {
		s.Step(s.T(), "POST /login with a blank username")
		resp, _ := s.PostForm("/login", url.Values{"username": {"   "}})
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		s.Require().NoError(err)
		s.Require().Equal("/", loc.Path)
		s.Require().NotEmpty(loc.Query().Get("notice"))
	})

	s.Run("Step 3: Claiming a username lands on the chat screen", func() {
		s.Step(s.T(), "POST /login with a fresh username")
		resp, _ := s.PostForm("/login", url.Values{"username": {username}})
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
		s.Require().Equal("/chat", resp.Header.Get("Location"))

		resp, body := s.Get("/chat")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Require().Contains(body, username)
	})

	s.Run("Step 4: Login page bounces authenticated visitors to chat", func() {
		s.Step(s.T(), "GET / with an active session")
		resp, _ := s.Get("/")
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
		s.Require().Equal("/chat", resp.Header.Get("Location"))
	})

	s.Run("Step 5: Logout clears the session", func() {
		s.Step(s.T(), "POST /logout then GET /chat")
		resp, _ := s.PostForm("/logout", url.Values{})
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
		s.Require().Equal("/", resp.Header.Get("Location"))

		resp, _ = s.Get("/chat")
		s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
		s.Require().Equal("/", resp.Header.Get("Location"))
	})
}
