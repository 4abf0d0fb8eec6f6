package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/contact"
	"github.com/lystaria/site-service/internal/discord"
	"github.com/lystaria/site-service/internal/feed"
	"github.com/lystaria/site-service/internal/horoscope"
	"github.com/lystaria/site-service/internal/logging"
	"github.com/lystaria/site-service/internal/push"
	"github.com/lystaria/site-service/internal/receiver"
	"github.com/lystaria/site-service/internal/seen"
	"github.com/lystaria/site-service/internal/server"
	"github.com/lystaria/site-service/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := discord.New(cfg.Discord)
	if err != nil {
		return err
	}

	// Requests before the store connects fail fast instead of waiting.
	store := storage.NewDeferred()
	defer store.Close()
	go connectStorage(ctx, cfg.Storage, store, logger)

	seenSet := seen.New(cfg.Announce.SeenTTL)
	go seenSet.StartSweeper(ctx, cfg.Announce.SweepInterval, logger)

	deps := server.Deps{
		Announcer:  receiver.NewService(cfg.Announce.SharedSecret, seenSet, store, notifier, logger),
		Storage:    store,
		Horoscopes: horoscope.NewService(cfg.Horoscope, logger),
		Feed:       feed.NewGenerator(os.DirFS("."), cfg.Site.URL, cfg.Feed),
	}

	if cfg.Push.Enabled {
		fb, err := push.NewFirebase(ctx, cfg.Push)
		if err != nil {
			return err
		}
		deps.Push = push.NewDispatcher(fb, fb, logger)
		deps.PushSecret = cfg.Push.WebhookSecret
	}
	if cfg.Contact.Enabled {
		deps.Contact = contact.NewService(cfg.Contact, cfg.Site.Name, logger)
	}

	httpServer := server.NewServer(cfg.Server, deps, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, gracefully shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// connectStorage dials the durable store once and attaches it. Failures are
// retried with backoff until ctx ends.
func connectStorage(ctx context.Context, cfg config.StorageConfig, store *storage.Deferred, logger *slog.Logger) {
	backoff := time.Second
	for {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		backend, err := storage.NewStorage(connectCtx, cfg)
		cancel()
		if err == nil {
			store.Attach(backend)
			logger.Info("storage connected", "type", cfg.Type)
			return
		}

		logger.Error("storage connection failed", "type", cfg.Type, "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Minute)
	}
}
