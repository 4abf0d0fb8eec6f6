package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

var (
	// ErrAlreadyAnnounced is returned when the uniqueness constraint on url
	// rejects an insert. Callers treat it as a successful dedup.
	ErrAlreadyAnnounced = errors.New("post already announced")

	// ErrNotReady is returned while the durable store is still connecting.
	ErrNotReady = errors.New("storage not ready")
)

// Storage interface defines the contract for the durable dedup store
type Storage interface {
	// CreateAnnouncedPost inserts post, relying on the store's uniqueness
	// constraint on url. A conflict yields ErrAlreadyAnnounced.
	CreateAnnouncedPost(ctx context.Context, post *models.AnnouncedPost) error
	GetAnnouncedPost(ctx context.Context, url string) (*models.AnnouncedPost, error)
	ListAnnouncedPosts(ctx context.Context, limit int, offset int) ([]models.AnnouncedPost, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	case "dynamodb":
		return NewDynamoDBStorage(ctx, cfg)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
