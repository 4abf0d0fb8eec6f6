package contact

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	// RequestsPerWindow is how many submissions one client may make per Window.
	RequestsPerWindow = 5
	// Window is the limiter refill period.
	Window = time.Minute

	maxTrackedClients = 10000
)

// Limiter is a per-client token bucket. Idle buckets expire after one
// window, by which time they would have refilled anyway.
type Limiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	now     func() time.Time
}

// NewLimiter creates a Limiter allowing RequestsPerWindow per Window.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, Window),
		now:     time.Now,
	}
}

// Allow reports whether client may make another request now.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(client)
	if !ok {
		b = rate.NewLimiter(rate.Every(Window/RequestsPerWindow), RequestsPerWindow)
		l.buckets.Add(client, b)
	}
	l.mu.Unlock()

	return b.AllowN(l.now(), 1)
}
