package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

const announcedPostsCollection = "announced_posts"

// MongoDBStorage implements Storage using a MongoDB collection with a unique
// index on url
type MongoDBStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBStorage connects to MongoDB and ensures the unique url index
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	storage := newMongoDBStorage(client, client.Database(cfg.MongoDBDatabase).Collection(announcedPostsCollection))
	if err := storage.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	return storage, nil
}

func newMongoDBStorage(client *mongo.Client, collection *mongo.Collection) *MongoDBStorage {
	return &MongoDBStorage{
		client:     client,
		collection: collection,
	}
}

// ensureIndexes creates the unique index that makes url the dedup key
func (m *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("url_unique"),
	})
	return err
}

// CreateAnnouncedPost inserts the record; a duplicate key error means the
// url was announced before
func (m *MongoDBStorage) CreateAnnouncedPost(ctx context.Context, post *models.AnnouncedPost) error {
	_, err := m.collection.InsertOne(ctx, post)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyAnnounced
	}
	if err != nil {
		return fmt.Errorf("failed to insert announced post %s: %w", post.URL, err)
	}
	return nil
}

// GetAnnouncedPost retrieves the record for url
func (m *MongoDBStorage) GetAnnouncedPost(ctx context.Context, url string) (*models.AnnouncedPost, error) {
	var post models.AnnouncedPost
	err := m.collection.FindOne(ctx, bson.M{"url": url}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announced post %s: %w", url, err)
	}
	return &post, nil
}

// ListAnnouncedPosts retrieves records newest first with pagination
func (m *MongoDBStorage) ListAnnouncedPosts(ctx context.Context, limit int, offset int) ([]models.AnnouncedPost, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "announcedAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find announced posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.AnnouncedPost{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode announced posts: %w", err)
	}
	return posts, nil
}

// Ping checks the connection
func (m *MongoDBStorage) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	return m.client.Disconnect(context.Background())
}
