package announce

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/lystaria/site-service/internal/changeset"
	"github.com/lystaria/site-service/internal/models"
)

// Poster delivers JSON payloads.
type Poster interface {
	PostJSON(ctx context.Context, endpoint, secret string, payload, out any) error
	PostJSONBearer(ctx context.Context, endpoint, token string, payload any) error
}

// Options configures where announcements go and how delivery is retried.
type Options struct {
	Endpoint      string
	Secret        string
	PushEndpoint  string // optional
	PushSecret    string
	RetryCount    int
	RetryInterval time.Duration
}

// Summary reports the outcome of a run.
type Summary struct {
	Changed   int
	Delivered int
	Deduped   int // accepted but already announced; nothing new was posted
	Skipped   int
	Failed    int
}

// Announcer runs resolve -> build -> deliver for one push.
type Announcer struct {
	opts     Options
	resolver changeset.Resolver
	files    fs.FS
	builder  *Builder
	poster   Poster
	logger   *slog.Logger
}

// NewAnnouncer creates an Announcer reading content from files.
func NewAnnouncer(opts Options, resolver changeset.Resolver, files fs.FS, builder *Builder, poster Poster, logger *slog.Logger) *Announcer {
	if opts.RetryCount < 1 {
		opts.RetryCount = 1
	}
	return &Announcer{
		opts:     opts,
		resolver: resolver,
		files:    files,
		builder:  builder,
		poster:   poster,
		logger:   logger,
	}
}

// Run announces every qualifying file changed between before and after.
// Files are independent: one failure does not stop the rest, and all
// failures are returned joined.
func (a *Announcer) Run(ctx context.Context, before, after string) (Summary, error) {
	var summary Summary

	paths, err := a.resolver.Changed(ctx, before, after)
	if err != nil {
		return summary, fmt.Errorf("failed to resolve changes: %w", err)
	}
	summary.Changed = len(paths)

	if len(paths) == 0 {
		a.logger.Info("no relevant content changes", "before", before, "after", after)
		return summary, nil
	}

	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := a.announceFile(ctx, p, after)
		if err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			a.logger.Error("announcement failed", "file", p, "error", err)
			continue
		}
		switch res {
		case outcomeDelivered:
			summary.Delivered++
		case outcomeDeduped:
			summary.Deduped++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	return summary, errors.Join(errs...)
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeDelivered
	outcomeDeduped
)

func (a *Announcer) announceFile(ctx context.Context, file, sha string) (outcome, error) {
	raw, err := fs.ReadFile(a.files, file)
	if errors.Is(err, fs.ErrNotExist) {
		// deleted or renamed in a later commit
		a.logger.Info("skipping missing file", "file", file)
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to read file: %w", err)
	}

	item, ok := a.builder.Build(file, raw, sha)
	if !ok {
		a.logger.Info("skipping file without an announceable post", "file", file)
		return outcomeSkipped, nil
	}

	var receipt models.AnnounceReceipt
	err = a.withRetry(ctx, func(ctx context.Context) error {
		receipt = models.AnnounceReceipt{}
		return a.poster.PostJSON(ctx, a.opts.Endpoint, a.opts.Secret, item.Announcement, &receipt)
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to deliver announcement: %w", err)
	}

	result := outcomeDelivered
	if receipt.Deduped {
		// An earlier attempt may have been stored without reaching the
		// channel; the record has to be checked by hand.
		result = outcomeDeduped
		a.logger.Warn("announcement already recorded, nothing posted", "title", item.Announcement.Post.Title, "url", item.Announcement.Post.URL)
	} else {
		a.logger.Info("announcement delivered", "title", item.Announcement.Post.Title, "url", item.Announcement.Post.URL, "message_id", receipt.MessageID)
	}

	if a.opts.PushEndpoint != "" {
		err = a.withRetry(ctx, func(ctx context.Context) error {
			return a.poster.PostJSONBearer(ctx, a.opts.PushEndpoint, a.opts.PushSecret, item.PushMessage())
		})
		if err != nil {
			return result, fmt.Errorf("failed to send push: %w", err)
		}
		a.logger.Info("push sent", "title", item.Announcement.Post.Title, "path", item.Path)
	}

	return result, nil
}

// withRetry retries transport failures and temporary upstream statuses
// with a linear backoff.
func (a *Announcer) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < a.opts.RetryCount; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable(err) {
			return err
		}
		if attempt < a.opts.RetryCount-1 {
			waitTime := time.Duration(attempt+1) * a.opts.RetryInterval
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", a.opts.RetryCount, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr.Temporary()
	}
	return true
}
