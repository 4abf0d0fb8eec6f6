package storage

import (
	"context"
	"sync/atomic"

	"github.com/lystaria/site-service/internal/models"
)

// Deferred is a Storage whose backend is attached after the connection is
// established. Until then every call fails fast with ErrNotReady instead of
// waiting on the connection.
type Deferred struct {
	backend atomic.Pointer[Storage]
}

// NewDeferred creates a Deferred with no backend attached.
func NewDeferred() *Deferred {
	return &Deferred{}
}

// Attach makes s the backend for all subsequent calls.
func (d *Deferred) Attach(s Storage) {
	d.backend.Store(&s)
}

// Ready reports whether a backend is attached.
func (d *Deferred) Ready() bool {
	return d.backend.Load() != nil
}

func (d *Deferred) get() (Storage, error) {
	p := d.backend.Load()
	if p == nil {
		return nil, ErrNotReady
	}
	return *p, nil
}

func (d *Deferred) CreateAnnouncedPost(ctx context.Context, post *models.AnnouncedPost) error {
	s, err := d.get()
	if err != nil {
		return err
	}
	return s.CreateAnnouncedPost(ctx, post)
}

func (d *Deferred) GetAnnouncedPost(ctx context.Context, url string) (*models.AnnouncedPost, error) {
	s, err := d.get()
	if err != nil {
		return nil, err
	}
	return s.GetAnnouncedPost(ctx, url)
}

func (d *Deferred) ListAnnouncedPosts(ctx context.Context, limit int, offset int) ([]models.AnnouncedPost, error) {
	s, err := d.get()
	if err != nil {
		return nil, err
	}
	return s.ListAnnouncedPosts(ctx, limit, offset)
}

func (d *Deferred) Ping(ctx context.Context) error {
	s, err := d.get()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close closes the attached backend, if any.
func (d *Deferred) Close() error {
	s, err := d.get()
	if err != nil {
		return nil
	}
	return s.Close()
}
