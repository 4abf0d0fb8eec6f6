// Package seen is the per-process fast-path dedup cache for announcement
// request ids. It is an optimisation only: durable storage is authoritative.
package seen

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a request id short-circuits repeats.
	DefaultTTL = 10 * time.Minute

	// DefaultSweepInterval is how often expired entries are purged.
	DefaultSweepInterval = time.Minute
)

// Set maps request ids to the time they were first seen.
type Set struct {
	entries sync.Map // string -> time.Time
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Set.
type Option func(*Set)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Set) {
		s.now = now
	}
}

// New creates a Set whose entries expire after ttl.
func New(ttl time.Duration, opts ...Option) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Set{
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the entry lifetime.
func (s *Set) TTL() time.Duration {
	return s.ttl
}

// SeenOrRecord reports whether key has an unexpired entry. If not, key is
// recorded with the current time and false is returned.
func (s *Set) SeenOrRecord(key string) bool {
	now := s.now()
	for {
		prev, loaded := s.entries.LoadOrStore(key, now)
		if !loaded {
			return false
		}
		if !s.expired(prev.(time.Time), now) {
			return true
		}
		// stale entry the sweeper has not reached yet
		if s.entries.CompareAndSwap(key, prev, now) {
			return false
		}
	}
}

// Forget drops key so the next request with it is not short-circuited.
func (s *Set) Forget(key string) {
	s.entries.Delete(key)
}

// Sweep removes expired entries and returns how many were removed.
func (s *Set) Sweep() int {
	now := s.now()
	removed := 0
	s.entries.Range(func(key, value any) bool {
		if s.expired(value.(time.Time), now) && s.entries.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of entries, expired or not.
func (s *Set) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartSweeper purges expired entries every interval until ctx is cancelled.
// It blocks, so callers run it in its own goroutine.
func (s *Set) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				logger.Debug("seen-set sweep complete", "removed", removed, "remaining", s.Len())
			}
		}
	}
}

func (s *Set) expired(at, now time.Time) bool {
	return now.Sub(at) >= s.ttl
}
