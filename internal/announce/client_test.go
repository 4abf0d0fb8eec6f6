package announce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lystaria/site-service/internal/models"
)

func TestClient_PostJSON(t *testing.T) {
	var got models.Announcement
	var secret, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get(SharedSecretHeader)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"messageId":"1"}`))
	}))
	defer server.Close()

	payload := models.Announcement{
		SHA:       "abc",
		RequestID: "https://lystaria.im/blog/a",
		Post:      models.PostSummary{Title: "A", URL: "https://lystaria.im/blog/a"},
	}

	var receipt models.AnnounceReceipt
	err := NewClient(5*time.Second).PostJSON(context.Background(), server.URL, "s3cret", payload, &receipt)

	assert.NoError(t, err)
	assert.Equal(t, models.AnnounceReceipt{OK: true, MessageID: "1"}, receipt)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, payload, got)
}

func TestClient_PostJSONBearer(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewClient(5*time.Second).PostJSONBearer(context.Background(), server.URL, "push", models.PushMessage{Title: "A"})

	assert.NoError(t, err)
	assert.Equal(t, "Bearer push", auth)
}

func TestClient_PostJSON_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	err := NewClient(5*time.Second).PostJSON(context.Background(), server.URL, "wrong", models.Announcement{}, nil)

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusUnauthorized, derr.Status)
	assert.Len(t, derr.Body, maxErrorBody)
	assert.False(t, derr.Temporary())
	assert.Contains(t, err.Error(), "failed with status 401")
}

func TestDeliveryError_Temporary(t *testing.T) {
	assert.True(t, (&DeliveryError{Status: 500}).Temporary())
	assert.True(t, (&DeliveryError{Status: 503}).Temporary())
	assert.False(t, (&DeliveryError{Status: 429}).Temporary())
	assert.False(t, (&DeliveryError{Status: 400}).Temporary())
}

func TestClient_PostJSON_EmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var receipt models.AnnounceReceipt
	err := NewClient(5*time.Second).PostJSON(context.Background(), server.URL, "s", models.Announcement{}, &receipt)

	assert.NoError(t, err)
	assert.Equal(t, models.AnnounceReceipt{}, receipt)
}

func TestClient_PostJSON_MalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	var receipt models.AnnounceReceipt
	err := NewClient(5*time.Second).PostJSON(context.Background(), server.URL, "s", models.Announcement{}, &receipt)

	assert.ErrorContains(t, err, "failed to decode response")
}

func TestClient_PostJSON_TransportError(t *testing.T) {
	err := NewClient(time.Second).PostJSON(context.Background(), "http://127.0.0.1:1", "s", models.Announcement{}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to make request")
}
