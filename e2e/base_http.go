package e2e

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	Client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping e2e suite")
	}

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)

	// Redirects are followed manually so status codes can be asserted
	s.Client = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Step prints a colorized header for a scenario step in the logs
func (s *BaseHTTPSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Get performs a GET against the server and returns the response with its body read
func (s *BaseHTTPSuite) Get(path string) (*http.Response, string) {
	start := time.Now()
	resp, err := s.Client.Get(s.Config.ServerAddr + path)
	s.Require().NoError(err)
	return s.logAndDrain("GET", path, resp, start)
}

// PostForm performs a form POST against the server and returns the response with its body read
func (s *BaseHTTPSuite) PostForm(path string, form url.Values) (*http.Response, string) {
	start := time.Now()
	resp, err := s.Client.Post(
		s.Config.ServerAddr+path,
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	s.Require().NoError(err)
	return s.logAndDrain("POST", path, resp, start)
}

func (s *BaseHTTPSuite) logAndDrain(method, path string, resp *http.Response, start time.Time) (*http.Response, string) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))

	if s.Config.DebugBody {
		fmt.Fprintf(&logBuilder, "\n--- BODY ---\n%s", string(body))
	}

	out := logBuilder.String()
	if s.Config.Colours {
		if resp.StatusCode >= 400 {
			out = color.New(color.FgRed).Render(out)
		} else {
			out = color.New(color.FgCyan).Render(out)
		}
	}
	s.T().Log(out)

	return resp, string(body)
}
