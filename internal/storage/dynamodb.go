package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := newDynamoDBStorage(dynamodb.New(sess), cfg.TableName)

	// Create table if it doesn't exist (for local testing)
	if err := storage.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

func newDynamoDBStorage(client dynamodbiface.DynamoDBAPI, tableName string) *DynamoDBStorage {
	return &DynamoDBStorage{
		client:    client,
		tableName: tableName,
	}
}

// ensureTable creates the DynamoDB table keyed by url if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context) error {
	describe := &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	}

	_, err := d.client.DescribeTableWithContext(ctx, describe)
	if err == nil {
		return nil // Table already exists
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("url"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("url"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTableWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Wait for table to be created
	return d.client.WaitUntilTableExistsWithContext(ctx, describe)
}

// CreateAnnouncedPost writes the record only if no item with the same url
// exists; a failed condition means the url was announced before
func (d *DynamoDBStorage) CreateAnnouncedPost(ctx context.Context, post *models.AnnouncedPost) error {
	item, err := dynamodbattribute.MarshalMap(post)
	if err != nil {
		return fmt.Errorf("failed to marshal announced post %s: %w", post.URL, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#url)"),
		ExpressionAttributeNames: map[string]*string{
			"#url": aws.String("url"),
		},
	})
	if isConditionalCheckFailed(err) {
		return ErrAlreadyAnnounced
	}
	if err != nil {
		return fmt.Errorf("failed to store announced post %s: %w", post.URL, err)
	}
	return nil
}

// GetAnnouncedPost retrieves the record for url
func (d *DynamoDBStorage) GetAnnouncedPost(ctx context.Context, url string) (*models.AnnouncedPost, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"url": {S: aws.String(url)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get announced post %s: %w", url, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var post models.AnnouncedPost
	if err := dynamodbattribute.UnmarshalMap(result.Item, &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal announced post: %w", err)
	}
	return &post, nil
}

// ListAnnouncedPosts scans the table and pages newest first. The table is
// small (one item per published post) so a full scan is acceptable.
func (d *DynamoDBStorage) ListAnnouncedPosts(ctx context.Context, limit int, offset int) ([]models.AnnouncedPost, error) {
	var (
		posts     []models.AnnouncedPost
		decodeErr error
	)
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []models.AnnouncedPost
		if decodeErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); decodeErr != nil {
			return false
		}
		posts = append(posts, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan announced posts: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal announced posts: %w", decodeErr)
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].AnnouncedAt.After(posts[j].AnnouncedAt)
	})
	return paginate(posts, limit, offset), nil
}

// Ping checks that the table is reachable
func (d *DynamoDBStorage) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	return err
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func paginate(posts []models.AnnouncedPost, limit, offset int) []models.AnnouncedPost {
	if offset >= len(posts) {
		return []models.AnnouncedPost{}
	}
	end := len(posts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return posts[offset:end]
}
