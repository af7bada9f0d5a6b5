package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// cookiePrefix namespaces the session pair in the browser, mirroring the
// original client-local keys.
const cookiePrefix = "arattai_"

// cookieStore adapts a request's cookies to the session.Store contract,
// so the browser keeps the {profile_id, username} pair across reloads.
type cookieStore struct {
	c *fiber.Ctx
}

func newCookieStore(c *fiber.Ctx) cookieStore {
	return cookieStore{c: c}
}

func (s cookieStore) Get(key string) (string, bool) {
	value := s.c.Cookies(cookiePrefix + key)
	return value, value != ""
}

func (s cookieStore) Set(key, value string) error {
	s.c.Cookie(&fiber.Cookie{
		Name:     cookiePrefix + key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s cookieStore) Delete(key string) error {
	s.c.Cookie(&fiber.Cookie{
		Name:    cookiePrefix + key,
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-time.Hour),
	})
	return nil
}

// frozenStore carries the session pair captured at websocket upgrade time.
// A websocket cannot set cookies, so it is read-only by construction.
type frozenStore map[string]string

func (s frozenStore) Get(key string) (string, bool) {
	value, ok := s[key]
	return value, ok && value != ""
}

func (s frozenStore) Set(string, string) error { return nil }

func (s frozenStore) Delete(string) error { return nil }
