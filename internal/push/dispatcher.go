// Package push broadcasts notifications to every registered device token.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lystaria/site-service/internal/models"
)

// MaxBatch is the most tokens a single multicast may carry.
const MaxBatch = 500

const (
	defaultTitle   = "New post"
	defaultMessage = "A new post was published."
	defaultURL     = "/"
)

// ErrNoTokens is returned when no device has registered.
var ErrNoTokens = errors.New("no tokens")

// TokenSource lists registered device tokens.
type TokenSource interface {
	Tokens(ctx context.Context) ([]string, error)
}

// Sender delivers one data-only multicast batch.
type Sender interface {
	SendMulticast(ctx context.Context, tokens []string, data map[string]string) (models.PushResult, error)
}

// Dispatcher fans a message out to all tokens in batches.
type Dispatcher struct {
	tokens TokenSource
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(tokens TokenSource, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tokens: tokens,
		sender: sender,
		logger: logger,
	}
}

// Send broadcasts msg after filling in defaults. A failing batch aborts the
// remaining ones and the partial counts are returned with the error.
func (d *Dispatcher) Send(ctx context.Context, msg models.PushMessage) (models.PushResult, error) {
	var total models.PushResult
	msg = withDefaults(msg)

	tokens, err := d.tokens.Tokens(ctx)
	if err != nil {
		return total, fmt.Errorf("failed to load tokens: %w", err)
	}
	if len(tokens) == 0 {
		return total, ErrNoTokens
	}

	data := map[string]string{
		"title":   msg.Title,
		"message": msg.Message,
		"url":     msg.URL,
	}

	for start := 0; start < len(tokens); start += MaxBatch {
		end := min(start+MaxBatch, len(tokens))
		res, err := d.sender.SendMulticast(ctx, tokens[start:end], data)
		if err != nil {
			return total, fmt.Errorf("failed to send batch %d-%d: %w", start, end, err)
		}
		total.Sent += res.Sent
		total.Failed += res.Failed
	}

	d.logger.Info("push sent", "title", msg.Title, "sent", total.Sent, "failed", total.Failed)
	return total, nil
}

func withDefaults(msg models.PushMessage) models.PushMessage {
	if strings.TrimSpace(msg.Title) == "" {
		msg.Title = defaultTitle
	}
	if strings.TrimSpace(msg.Message) == "" {
		msg.Message = defaultMessage
	}
	if strings.TrimSpace(msg.URL) == "" {
		msg.URL = defaultURL
	}
	return msg
}
