package horoscope

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lystaria/site-service/internal/config"
)

func newTestService(url string, ttl time.Duration) *Service {
	s := NewService(config.HoroscopeConfig{
		APIURL:   url,
		CacheTTL: ttl,
		Timeout:  5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestService_Report(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		sign := strings.TrimPrefix(r.URL.Path, "/api/horoscope/")
		switch sign {
		case "leo":
			w.WriteHeader(http.StatusBadGateway)
		case "virgo":
			json.NewEncoder(w).Encode(map[string]string{"sign": sign, "horoscope": ""})
		case "libra":
			w.Write([]byte("not json"))
		default:
			json.NewEncoder(w).Encode(map[string]string{"sign": sign, "date": "2026-10-15", "horoscope": "Stars favour " + sign})
		}
	}))
	defer server.Close()

	report := newTestService(server.URL+"/api/horoscope/", time.Minute).Report(context.Background())

	assert.Equal(t, "Thursday, October 15, 2026", report.Today)
	require.Len(t, report.Horoscopes, 12)
	assert.Equal(t, "Stars favour aries", report.Horoscopes["aries"].Description)
	assert.Equal(t, "♈", report.Horoscopes["aries"].Symbol)
	assert.Equal(t, "Mar 21 - Apr 19", report.Horoscopes["aries"].Dates)
	for _, sign := range []string{"leo", "virgo", "libra"} {
		assert.Equal(t, Unavailable, report.Horoscopes[sign].Description, sign)
		assert.NotEmpty(t, report.Horoscopes[sign].Symbol, sign)
	}
}

func TestService_Report_UpstreamDown(t *testing.T) {
	report := newTestService("http://127.0.0.1:1", time.Minute).Report(context.Background())

	require.Len(t, report.Horoscopes, 12)
	for name, h := range report.Horoscopes {
		assert.Equal(t, Unavailable, h.Description, name)
	}
}

func TestService_Report_Cached(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{"horoscope": "ok"})
	}))
	defer server.Close()

	s := newTestService(server.URL, time.Hour)
	s.Report(context.Background())
	s.Report(context.Background())

	assert.Equal(t, int32(len(Signs)), atomic.LoadInt32(&calls))
}

func TestService_Report_CoalescesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		json.NewEncoder(w).Encode(map[string]string{"horoscope": "ok"})
	}))
	defer server.Close()

	s := newTestService(server.URL, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report := s.Report(context.Background())
			assert.Equal(t, "ok", report.Horoscopes["pisces"].Description)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(len(Signs)), atomic.LoadInt32(&calls))
}

func TestService_Report_ExpiresAfterTTL(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{"horoscope": "ok"})
	}))
	defer server.Close()

	s := newTestService(server.URL, 20*time.Millisecond)
	s.Report(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Report(context.Background())

	assert.Equal(t, int32(2*len(Signs)), atomic.LoadInt32(&calls))
}
