package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

// TokensPath is where device tokens are registered, as {key: {token}}.
const TokensPath = "push-tokens"

// Firebase reads tokens from the Realtime Database and sends through Cloud
// Messaging.
type Firebase struct {
	db        *db.Client
	messaging *messaging.Client
}

// NewFirebase initialises the Firebase app from service-account fields.
func NewFirebase(ctx context.Context, cfg config.PushConfig) (*Firebase, error) {
	creds, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   cfg.ProjectID,
		"client_email": cfg.ClientEmail,
		"private_key":  cfg.PrivateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase: %w", err)
	}

	dbClient, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &Firebase{db: dbClient, messaging: msgClient}, nil
}

type tokenRecord struct {
	Token string `json:"token"`
}

// Tokens returns every non-empty registered token, ordered by key.
func (f *Firebase) Tokens(ctx context.Context) ([]string, error) {
	var records map[string]tokenRecord
	if err := f.db.NewRef(TokensPath).Get(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TokensPath, err)
	}
	return tokensOf(records), nil
}

// SendMulticast sends a data-only message to tokens.
func (f *Firebase) SendMulticast(ctx context.Context, tokens []string, data map[string]string) (models.PushResult, error) {
	resp, err := f.messaging.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
	})
	if err != nil {
		return models.PushResult{}, err
	}
	return models.PushResult{Sent: resp.SuccessCount, Failed: resp.FailureCount}, nil
}

func tokensOf(records map[string]tokenRecord) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		if t := records[k].Token; t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
