package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"

	"arattai/infrastructure/storage"
	"arattai/internal"
	"arattai/notify"
	"arattai/notify/natsbus"
	"arattai/repositories"
	"arattai/services"
	"arattai/web"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer (database close, bus drain) executes before
// the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Notification bus
	var bus notify.Bus
	if config.NatsURL != "" {
		natsBus, err := natsbus.New(config.NatsURL, logger)
		if err != nil {
			return exitRuntime, fmt.Errorf("notification bus error: %w", err)
		}
		defer func() {
			logger.Info("Closing NATS connection...")
			natsBus.Close()
		}()
		bus = natsBus
	} else {
		bus = notify.NewMemoryBus(logger)
	}

	// 3. Store backend
	repos, cleanup, err := buildRepositories(ctx, config, bus, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer cleanup()

	// 4. Service & web surface
	chatService := services.NewChatService(repos, bus, logger, config.TypingTimeout)
	server, err := web.NewServer(chatService, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("web server error: %w", err)
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Starting web server", "address", address, "backend", config.StoreBackend)
		if err := server.Listen(address); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 7. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		logger.Warn("Web server shutdown failed", "error", err)
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// buildRepositories opens the selected store backend and returns its three
// repositories plus a cleanup function closing everything it opened.
func buildRepositories(ctx context.Context, config internal.Config, bus notify.Bus, logger *slog.Logger) (services.Repositories, func(), error) {
	switch config.StoreBackend {
	case internal.BackendPostgres:
		db, err := storage.Open(config.PostgresDSN)
		if err != nil {
			return services.Repositories{}, nil, fmt.Errorf("database opening failed: %w", err)
		}
		if err := storage.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return services.Repositories{}, nil, fmt.Errorf("migrations failed: %w", err)
		}
		cleanup := func() {
			logger.Info("Closing PostgreSQL connection...")
			_ = db.Close()
		}
		return services.Repositories{
			Profiles: storage.NewProfileRepository(db, bus, logger),
			Messages: storage.NewMessageRepository(db, bus, logger),
			Typing:   storage.NewTypingRepository(db, bus, logger),
		}, cleanup, nil

	default:
		options := buildBadgerOpts(config, logger, ctx)
		db, err := badger.Open(options)
		if err != nil {
			return services.Repositories{}, nil, fmt.Errorf("database opening failed: %w", err)
		}
		cleanup := func() {
			// Releases the lock and flushes buffers before the process exits.
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}
		if config.DebugPort != 0 {
			internal.StartDebugServer(db, config.DebugPort, "/inspect", chatMapper, nil)
			logger.Info("Store inspector started", "port", config.DebugPort)
		}
		return services.Repositories{
			Profiles: repositories.NewProfileRepository(db, bus, logger),
			Messages: repositories.NewMessageRepository(db, bus, logger),
			Typing:   repositories.NewTypingRepository(db, bus, logger),
		}, cleanup, nil
	}
}

// chatMapper decodes the JSON rows behind each key family so the store
// inspector shows readable columns instead of raw bytes.
func chatMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		// Index entries hold a bare uuid, not a JSON row
		row.Detail = string(val)
		return row
	}

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Table = "messages"
		row.Detail = fmt.Sprintf("%v", fields["content"])
	case strings.HasPrefix(key, "profile:"):
		row.Table = "profiles"
		row.Detail = fmt.Sprintf("%v online=%v", fields["username"], fields["is_online"])
	case strings.HasPrefix(key, "typing:"):
		row.Table = "typing_status"
		row.Detail = fmt.Sprintf("is_typing=%v since %v", fields["is_typing"], fields["updated_at"])
	}
	return row
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.ERROR)
	}

	return options
}
