// Package horoscope aggregates the daily horoscope for every sign.
package horoscope

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

// Unavailable replaces a sign whose fetch failed or came back empty.
const Unavailable = "Horoscope unavailable at this time."

// TodayLayout formats the report date, e.g. "Monday, January 2, 2006".
const TodayLayout = "Monday, January 2, 2006"

const cacheKey = "horoscopes"

// Sign is one zodiac sign.
type Sign struct {
	Name   string
	Symbol string
	Dates  string
}

// Signs lists the twelve signs in calendar order.
var Signs = []Sign{
	{"aries", "♈", "Mar 21 - Apr 19"},
	{"taurus", "♉", "Apr 20 - May 20"},
	{"gemini", "♊", "May 21 - Jun 20"},
	{"cancer", "♋", "Jun 21 - Jul 22"},
	{"leo", "♌", "Jul 23 - Aug 22"},
	{"virgo", "♍", "Aug 23 - Sep 22"},
	{"libra", "♎", "Sep 23 - Oct 22"},
	{"scorpio", "♏", "Oct 23 - Nov 21"},
	{"sagittarius", "♐", "Nov 22 - Dec 21"},
	{"capricorn", "♑", "Dec 22 - Jan 19"},
	{"aquarius", "♒", "Jan 20 - Feb 18"},
	{"pisces", "♓", "Feb 19 - Mar 20"},
}

// Service fetches and caches horoscopes.
type Service struct {
	apiURL     string
	httpClient *http.Client
	cache      *expirable.LRU[string, map[string]models.Horoscope]
	group      singleflight.Group
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service whose results are cached for cfg.CacheTTL.
func NewService(cfg config.HoroscopeConfig, logger *slog.Logger) *Service {
	return &Service{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  expirable.NewLRU[string, map[string]models.Horoscope](1, nil, cfg.CacheTTL),
		logger: logger,
		now:    time.Now,
	}
}

// Report returns today's horoscopes. Concurrent cache misses share one
// upstream fan-out.
func (s *Service) Report(ctx context.Context) models.HoroscopeReport {
	horoscopes, ok := s.cache.Get(cacheKey)
	if !ok {
		v, _, _ := s.group.Do(cacheKey, func() (any, error) {
			if cached, ok := s.cache.Get(cacheKey); ok {
				return cached, nil
			}
			fresh := s.fetchAll(context.WithoutCancel(ctx))
			s.cache.Add(cacheKey, fresh)
			return fresh, nil
		})
		horoscopes = v.(map[string]models.Horoscope)
	}

	return models.HoroscopeReport{
		Today:      s.now().Format(TodayLayout),
		Horoscopes: horoscopes,
	}
}

// fetchAll queries every sign concurrently. A failed sign degrades to the
// placeholder and never fails the batch.
func (s *Service) fetchAll(ctx context.Context) map[string]models.Horoscope {
	descriptions := make([]string, len(Signs))

	var g errgroup.Group
	for i, sign := range Signs {
		g.Go(func() error {
			text, err := s.fetch(ctx, sign.Name)
			if err != nil {
				s.logger.Warn("horoscope fetch failed", "sign", sign.Name, "error", err)
			}
			descriptions[i] = text
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]models.Horoscope, len(Signs))
	for i, sign := range Signs {
		desc := descriptions[i]
		if desc == "" {
			desc = Unavailable
		}
		out[sign.Name] = models.Horoscope{
			Description: desc,
			Symbol:      sign.Symbol,
			Dates:       sign.Dates,
		}
	}
	return out
}

type upstreamHoroscope struct {
	Sign      string `json:"sign"`
	Date      string `json:"date"`
	Horoscope string `json:"horoscope"`
}

func (s *Service) fetch(ctx context.Context, sign string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/"+sign, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var h upstreamHoroscope
	if err := json.Unmarshal(body, &h); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return strings.TrimSpace(h.Horoscope), nil
}
