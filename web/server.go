// Package web serves the two views of the chat client, Login and Chat,
// and a websocket per chat view carrying state snapshots to the browser.
// All synchronization logic runs server-side; the page is a thin terminal.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"arattai/services"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	app       *fiber.App
	svc       services.IChatService
	log       *slog.Logger
	templates *template.Template
}

func NewServer(svc services.IChatService, log *slog.Logger) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:       fiber.New(fiber.Config{DisableStartupMessage: true}),
		svc:       svc,
		log:       log,
		templates: templates,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(logger.New())

	s.app.Get("/", s.handleLoginPage)
	s.app.Post("/login", s.handleLogin)
	s.app.Get("/chat", s.handleChatPage)
	s.app.Post("/logout", s.handleLogout)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		s.handleWebSocket(conn)
	}))
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) render(c *fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("Template rendering failed", "template", name, "error", err)
		return fiber.ErrInternalServerError
	}
	c.Type("html")
	return c.Send(buf.Bytes())
}
