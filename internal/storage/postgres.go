package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a unique constraint conflict
const uniqueViolation = pq.ErrorCode("23505")

const createAnnouncedPostsTable = `
	CREATE TABLE IF NOT EXISTS announced_posts (
		url          TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		request_id   TEXT NOT NULL DEFAULT '',
		sha          TEXT NOT NULL DEFAULT '',
		announced_at TIMESTAMPTZ NOT NULL
	)`

// PostgreSQLStorage implements Storage using a table whose primary key is url
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage connects to PostgreSQL, verifies the connection and
// creates the table if needed
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := newPostgreSQLStorage(db)
	if err := storage.ensureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

func newPostgreSQLStorage(db *sql.DB) *PostgreSQLStorage {
	return &PostgreSQLStorage{db: db}
}

func (p *PostgreSQLStorage) ensureTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, createAnnouncedPostsTable)
	return err
}

// CreateAnnouncedPost inserts the record. There is deliberately no
// ON CONFLICT clause: the unique violation is how a repeat is detected.
func (p *PostgreSQLStorage) CreateAnnouncedPost(ctx context.Context, post *models.AnnouncedPost) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO announced_posts (url, title, request_id, sha, announced_at)
		VALUES ($1, $2, $3, $4, $5)`,
		post.URL,
		post.Title,
		post.RequestID,
		post.SHA,
		post.AnnouncedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyAnnounced
	}
	if err != nil {
		return fmt.Errorf("failed to insert announced post %s: %w", post.URL, err)
	}
	return nil
}

// GetAnnouncedPost retrieves the record for url
func (p *PostgreSQLStorage) GetAnnouncedPost(ctx context.Context, url string) (*models.AnnouncedPost, error) {
	var post models.AnnouncedPost
	err := p.db.QueryRowContext(ctx, `
		SELECT url, title, request_id, sha, announced_at
		FROM announced_posts
		WHERE url = $1`, url,
	).Scan(&post.URL, &post.Title, &post.RequestID, &post.SHA, &post.AnnouncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announced post %s: %w", url, err)
	}
	return &post, nil
}

// ListAnnouncedPosts retrieves records newest first with pagination
func (p *PostgreSQLStorage) ListAnnouncedPosts(ctx context.Context, limit int, offset int) ([]models.AnnouncedPost, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT url, title, request_id, sha, announced_at
		FROM announced_posts
		ORDER BY announced_at DESC, url
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query announced posts (limit=%d, offset=%d): %w", limit, offset, err)
	}
	defer rows.Close()

	posts := []models.AnnouncedPost{}
	for rows.Next() {
		var post models.AnnouncedPost
		if err := rows.Scan(&post.URL, &post.Title, &post.RequestID, &post.SHA, &post.AnnouncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announced post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate announced posts: %w", err)
	}
	return posts, nil
}

// Ping checks the connection
func (p *PostgreSQLStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the underlying connection pool
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
