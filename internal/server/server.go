package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lystaria/site-service/internal/announce"
	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/contact"
	"github.com/lystaria/site-service/internal/discord"
	"github.com/lystaria/site-service/internal/models"
	"github.com/lystaria/site-service/internal/push"
	"github.com/lystaria/site-service/internal/receiver"
	"github.com/lystaria/site-service/internal/storage"
)

const maxBodyBytes = 1 << 20

// Announcer handles inbound announcements.
type Announcer interface {
	Authenticate(secret string) error
	Announce(ctx context.Context, secret string, a models.Announcement) (receiver.Result, error)
}

// PushSender broadcasts a push notification.
type PushSender interface {
	Send(ctx context.Context, msg models.PushMessage) (models.PushResult, error)
}

// ContactSubmitter handles contact-form submissions.
type ContactSubmitter interface {
	Submit(ctx context.Context, client string, msg models.ContactMessage) error
}

// HoroscopeReporter returns the daily horoscopes.
type HoroscopeReporter interface {
	Report(ctx context.Context) models.HoroscopeReport
}

// FeedWriter renders the RSS feed.
type FeedWriter interface {
	Write(w io.Writer) error
}

// Deps are the handlers' collaborators. Push and Contact are optional and
// their routes are only registered when set.
type Deps struct {
	Announcer  Announcer
	Storage    storage.Storage
	Push       PushSender
	PushSecret string
	Contact    ContactSubmitter
	Horoscopes HoroscopeReporter
	Feed       FeedWriter
}

// Server handles HTTP requests
type Server struct {
	config config.ServerConfig
	deps   Deps
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /announce", s.handleAnnounce)
	mux.HandleFunc("GET /announced", s.handleAnnounced)
	mux.HandleFunc("GET /api/horoscopes.json", s.handleHoroscopes)
	mux.HandleFunc("GET /rss.xml", s.handleRSS)

	if s.deps.Push != nil {
		mux.HandleFunc("GET /api/push/send.json", s.handlePushInfo)
		mux.HandleFunc("POST /api/push/send.json", s.handlePushSend)
	}
	if s.deps.Contact != nil {
		mux.HandleFunc("POST /api/contact", s.handleContact)
	}

	return withRequestID(withLogging(s.logger, mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness only; it never touches storage.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(announce.SharedSecretHeader)

	var a models.Announcement
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&a); err != nil {
		// a bad secret wins over a bad body
		if authErr := s.deps.Announcer.Authenticate(secret); authErr != nil {
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.deps.Announcer.Announce(r.Context(), secret, a)
	switch {
	case errors.Is(err, receiver.ErrUnauthorized):
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, receiver.ErrBadRequest):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeFailure(w, http.StatusInternalServerError, internalMessage(err))
	default:
		writeJSON(w, http.StatusOK, models.AnnounceReceipt{OK: true, Deduped: res.Deduped, MessageID: res.MessageID})
	}
}

func internalMessage(err error) string {
	if errors.Is(err, storage.ErrNotReady) {
		return "storage not ready"
	}
	if errors.Is(err, discord.ErrChannelUnavailable) {
		return "announcement channel unavailable"
	}
	return "internal error"
}

// handleAnnounced lists announced posts, newest first
func (s *Server) handleAnnounced(w http.ResponseWriter, r *http.Request) {
	limit := 10 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, 100)
		}
	}

	offset := 0 // default
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	posts, err := s.deps.Storage.ListAnnouncedPosts(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list announced posts", "error", err)
		writeFailure(w, http.StatusInternalServerError, "failed to retrieve announced posts")
		return
	}
	if posts == nil {
		posts = []models.AnnouncedPost{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  posts,
		"count":  len(posts),
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handlePushInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "route": "/api/push/send.json"})
}

func (s *Server) handlePushSend(w http.ResponseWriter, r *http.Request) {
	expected := "Bearer " + s.deps.PushSecret
	got := r.Header.Get("Authorization")
	if s.deps.PushSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	// an unreadable body falls back to the default message
	var msg models.PushMessage
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg)

	res, err := s.deps.Push.Send(r.Context(), msg)
	if errors.Is(err, push.ErrNoTokens) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": 0, "note": "No tokens"})
		return
	}
	if err != nil {
		s.logger.Error("push failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": res.Sent, "failed": res.Failed})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg models.ContactMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON."})
		return
	}

	err := s.deps.Contact.Submit(r.Context(), clientIP(r), msg)
	switch {
	case errors.Is(err, contact.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests. Try again in a minute."})
	case errors.Is(err, contact.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name, email, and message are required."})
	case errors.Is(err, contact.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please enter a valid email address."})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send message."})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Server) handleHoroscopes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=86400")
	writeJSON(w, http.StatusOK, s.deps.Horoscopes.Report(r.Context()))
}

func (s *Server) handleRSS(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Feed.Write(&buf); err != nil {
		s.logger.Error("failed to render feed", "error", err)
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}
