package internal

import (
	"fmt"
	"time"
)

// Store backends selectable at boot.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	// StoreBackend selects where the three tables live: "badger" for the
	// embedded single-node store, "postgres" for the hosted one.
	StoreBackend   string `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/store"`
	PostgresDSN    string `env:"POSTGRES_DSN"`

	// SessionFilepath holds the client-local session pairs of devices that
	// are not browsers (the badger-backed session store).
	SessionFilepath string `env:"SESSION_FILEPATH,default=./data/session"`

	// NatsURL enables the NATS notification bus; empty selects the
	// in-process bus, which only works for a single server process.
	NatsURL string `env:"NATS_URL"`

	TypingTimeout   time.Duration `env:"TYPING_TIMEOUT,default=2s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`

	// DebugPort serves the read-only store inspector when non-zero.
	// Badger backend only.
	DebugPort int `env:"DEBUG_PORT"`
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendBadger:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
