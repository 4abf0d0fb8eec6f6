package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/lystaria/site-service/internal/models"
)

// MemoryStorage keeps announced posts in a map keyed by url. It is meant for
// local runs and tests; records do not survive a restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	posts map[string]models.AnnouncedPost
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{posts: make(map[string]models.AnnouncedPost)}
}

// CreateAnnouncedPost inserts the record unless the url is already present
func (m *MemoryStorage) CreateAnnouncedPost(_ context.Context, post *models.AnnouncedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.posts[post.URL]; exists {
		return ErrAlreadyAnnounced
	}
	m.posts[post.URL] = *post
	return nil
}

// GetAnnouncedPost retrieves the record for url
func (m *MemoryStorage) GetAnnouncedPost(_ context.Context, url string) (*models.AnnouncedPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.posts[url]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

// ListAnnouncedPosts returns records newest first with pagination
func (m *MemoryStorage) ListAnnouncedPosts(_ context.Context, limit int, offset int) ([]models.AnnouncedPost, error) {
	m.mu.RLock()
	posts := make([]models.AnnouncedPost, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, p)
	}
	m.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].AnnouncedAt.Equal(posts[j].AnnouncedAt) {
			return posts[i].URL < posts[j].URL
		}
		return posts[i].AnnouncedAt.After(posts[j].AnnouncedAt)
	})
	return paginate(posts, limit, offset), nil
}

// Count returns the number of stored records
func (m *MemoryStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posts)
}

// Ping always succeeds
func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryStorage) Close() error {
	return nil
}
