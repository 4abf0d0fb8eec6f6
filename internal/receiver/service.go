// Package receiver authenticates, deduplicates, persists and forwards
// announcements.
package receiver

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lystaria/site-service/internal/models"
	"github.com/lystaria/site-service/internal/seen"
	"github.com/lystaria/site-service/internal/storage"
	"github.com/lystaria/site-service/internal/urlutil"
)

// Notifier delivers an announcement and returns the delivered message id.
type Notifier interface {
	Deliver(ctx context.Context, a models.Announcement) (string, error)
}

// Result is the outcome of an accepted announcement.
type Result struct {
	Deduped   bool
	MessageID string
}

// Service handles inbound announcements.
type Service struct {
	secret   []byte
	seen     *seen.Set
	store    storage.Storage
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service. The seen-set is owned by the caller so its
// sweeper can be started and stopped with the process.
func NewService(secret string, set *seen.Set, store storage.Storage, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		secret:   []byte(secret),
		seen:     set,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Announce runs one announcement through auth, validation, both dedup tiers
// and delivery. A post is persisted before delivery and the record is kept
// even when delivery fails.
func (s *Service) Announce(ctx context.Context, secret string, a models.Announcement) (Result, error) {
	if err := s.Authenticate(secret); err != nil {
		return Result{}, err
	}

	a.Post.Title = strings.TrimSpace(a.Post.Title)
	a.Post.URL = strings.TrimSpace(a.Post.URL)
	a.RequestID = strings.TrimSpace(a.RequestID)
	if err := validate(a); err != nil {
		return Result{}, err
	}

	logger := s.logger.With("url", a.Post.URL, "request_id", a.RequestID, "sha", a.SHA)

	if a.RequestID != "" && s.seen.SeenOrRecord(a.RequestID) {
		logger.Info("announcement deduped", "tier", "memory")
		return Result{Deduped: true}, nil
	}

	err := s.store.CreateAnnouncedPost(ctx, models.NewAnnouncedPost(a, s.now()))
	if errors.Is(err, storage.ErrAlreadyAnnounced) {
		logger.Info("announcement deduped", "tier", "storage")
		return Result{Deduped: true}, nil
	}
	if err != nil {
		// Let a transport-level retry reach storage again.
		if a.RequestID != "" {
			s.seen.Forget(a.RequestID)
		}
		logger.Error("failed to persist announcement", "error", err)
		return Result{}, internalError("failed to persist announcement", err)
	}

	messageID, err := s.notifier.Deliver(ctx, a)
	if err != nil {
		logger.Error("announcement persisted but not delivered", "error", err)
		return Result{}, internalError("failed to deliver announcement", err)
	}

	logger.Info("announcement delivered", "message_id", messageID)
	return Result{MessageID: messageID}, nil
}

// Authenticate checks secret against the configured shared secret in
// constant time. An unset secret rejects everything.
func (s *Service) Authenticate(secret string) error {
	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(secret), s.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func validate(a models.Announcement) error {
	if a.Post.Title == "" {
		return &ValidationError{Field: "post.title", Reason: "is required"}
	}
	if a.Post.URL == "" {
		return &ValidationError{Field: "post.url", Reason: "is required"}
	}
	if !urlutil.IsHTTPURL(a.Post.URL) {
		return &ValidationError{Field: "post.url", Reason: "must be an absolute http(s) URL"}
	}
	// An unusable image is dropped at delivery rather than rejected.
	return nil
}
