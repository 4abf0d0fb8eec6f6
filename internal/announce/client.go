package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SharedSecretHeader carries the receiver's shared secret.
const SharedSecretHeader = "X-Shared-Secret"

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 512

// DeliveryError is returned when the endpoint answers outside the 2xx range.
type DeliveryError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Temporary reports whether a later attempt could succeed. Only server
// errors qualify; every 4xx, 429 included, is final.
func (e *DeliveryError) Temporary() bool {
	return e.Status >= 500
}

// Client posts JSON payloads. It never retries.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PostJSON sends payload to endpoint with the shared-secret header. When out
// is non-nil a 2xx JSON reply is decoded into it; an empty reply leaves out
// untouched.
func (c *Client) PostJSON(ctx context.Context, endpoint, secret string, payload, out any) error {
	return c.post(ctx, endpoint, payload, out, func(h http.Header) {
		h.Set(SharedSecretHeader, secret)
	})
}

// PostJSONBearer sends payload to endpoint with a bearer token.
func (c *Client) PostJSONBearer(ctx context.Context, endpoint, token string, payload any) error {
	return c.post(ctx, endpoint, payload, nil, func(h http.Header) {
		h.Set("Authorization", "Bearer "+token)
	})
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any, auth func(http.Header)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	auth(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     string(text),
		}
	}

	if out != nil {
		err := json.NewDecoder(resp.Body).Decode(out)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
