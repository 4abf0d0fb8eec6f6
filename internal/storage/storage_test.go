package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

func testPost(url string, at time.Time) *models.AnnouncedPost {
	return &models.AnnouncedPost{
		URL:         url,
		Title:       "Full Moon Rituals",
		RequestID:   url,
		SHA:         "a1b2c3",
		AnnouncedAt: at,
	}
}

func TestNewStorage_UnsupportedType(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "cassandra"})

	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "unsupported storage type: cassandra")
}

func TestNewStorage_Memory(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "memory"})

	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)
}

func TestMemoryStorage_UniqueURL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAnnouncedPost(ctx, testPost("https://lystaria.im/blog/a", now)))
	err := s.CreateAnnouncedPost(ctx, testPost("https://lystaria.im/blog/a", now.Add(time.Second)))

	assert.ErrorIs(t, err, ErrAlreadyAnnounced)
	assert.Equal(t, 1, s.Count())

	got, err := s.GetAnnouncedPost(ctx, "https://lystaria.im/blog/a")
	require.NoError(t, err)
	assert.Equal(t, now, got.AnnouncedAt, "first write wins")

	missing, err := s.GetAnnouncedPost(ctx, "https://lystaria.im/blog/missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStorage_ConcurrentInsertsSameURL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	var created atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CreateAnnouncedPost(ctx, testPost("https://example.com/blog/a", time.Now())); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, s.Count())
}

func TestMemoryStorage_ListAnnouncedPosts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, u := range []string{"https://x/a", "https://x/b", "https://x/c"} {
		require.NoError(t, s.CreateAnnouncedPost(ctx, testPost(u, base.Add(time.Duration(i)*time.Hour))))
	}

	page, err := s.ListAnnouncedPosts(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "https://x/c", page[0].URL)
	assert.Equal(t, "https://x/b", page[1].URL)

	page, err = s.ListAnnouncedPosts(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://x/a", page[0].URL)

	page, err = s.ListAnnouncedPosts(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestDeferred_FailsFastUntilAttached(t *testing.T) {
	ctx := context.Background()
	d := NewDeferred()

	assert.False(t, d.Ready())
	assert.ErrorIs(t, d.CreateAnnouncedPost(ctx, testPost("https://x/a", time.Now())), ErrNotReady)
	_, err := d.GetAnnouncedPost(ctx, "https://x/a")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = d.ListAnnouncedPosts(ctx, 10, 0)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, d.Ping(ctx), ErrNotReady)
	assert.NoError(t, d.Close())

	mem := NewMemoryStorage()
	d.Attach(mem)

	assert.True(t, d.Ready())
	assert.NoError(t, d.CreateAnnouncedPost(ctx, testPost("https://x/a", time.Now())))
	assert.ErrorIs(t, d.CreateAnnouncedPost(ctx, testPost("https://x/a", time.Now())), ErrAlreadyAnnounced)
	assert.NoError(t, d.Ping(ctx))
	assert.Equal(t, 1, mem.Count())
}
