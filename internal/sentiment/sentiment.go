// Package sentiment scores instruments from recent news headlines with a
// keyword lexicon, caching the score per query.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"signalengine/internal/cache"
)

// Defaults mirror the NewsAPI free tier limits.
const (
	DefaultTTL      = 900 * time.Second
	DefaultCapacity = 20
	DefaultPageSize = 5
	DefaultBaseURL  = "https://newsapi.org"
)

var (
	bullishWords = []string{"gain", "rise", "growth", "bullish", "high", "surge", "recovery", "uptrend"}
	bearishWords = []string{"drop", "fall", "loss", "bearish", "low", "plunge", "crash", "down", "recession"}
)

// Config holds NewsAPI settings. An empty APIKey disables lookups.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	TTL      time.Duration
	Capacity int
}

// Article is the subset of a NewsAPI article the lexicon reads.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []Article `json:"articles"`
}

// Engine answers Score queries from its cache or NewsAPI.
type Engine struct {
	cfg    Config
	client *http.Client
	cache  *cache.TTL[string, float64]
	group  singleflight.Group
	log    *slog.Logger
}

// New creates a sentiment engine. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, log *slog.Logger) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		client: client,
		cache:  cache.New[string, float64](cfg.TTL, cfg.Capacity),
		log:    log.With("component", "sentiment"),
	}
}

// Cache exposes the score cache (for stats and tests).
func (e *Engine) Cache() *cache.TTL[string, float64] { return e.cache }

// Score returns the news sentiment for query in [-1, 1]. It is 0 when no
// API key is configured or the source fails; failures are not cached.
func (e *Engine) Score(ctx context.Context, query string) float64 {
	if e == nil || e.cfg.APIKey == "" {
		return 0
	}
	if s, ok := e.cache.Get(query); ok {
		return s
	}

	ch := e.group.DoChan(query, func() (any, error) {
		// Detached from the first caller; fetch applies cfg.Timeout.
		articles, err := e.fetch(context.WithoutCancel(ctx), query)
		if err != nil {
			return 0.0, err
		}
		s := ScoreArticles(articles)
		e.cache.Put(query, s)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return 0
	case res := <-ch:
		if res.Err != nil {
			e.log.Warn("news lookup failed", "query", query, "error", res.Err)
			return 0
		}
		return res.Val.(float64)
	}
}

func (e *Engine) fetch(ctx context.Context, query string) ([]Article, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", query)
	q.Set("language", "en")
	q.Set("sortBy", "relevancy")
	q.Set("pageSize", fmt.Sprint(DefaultPageSize))
	u := fmt.Sprintf("%s/v2/everything?%s", strings.TrimRight(e.cfg.BaseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", e.cfg.APIKey)

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			e.log.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("newsapi http %d", res.StatusCode)
	}
	var body everythingResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("newsapi: decode: %w", err)
	}
	if body.Status == "error" {
		return nil, fmt.Errorf("newsapi: %s: %s", body.Code, body.Message)
	}
	return body.Articles, nil
}

// ScoreArticles applies the lexicon: each listed word found in an article's
// lower-cased title and description counts once, and the net count is
// divided by 10 and clamped to [-1, 1].
func ScoreArticles(articles []Article) float64 {
	var score int
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Description)
		for _, w := range bullishWords {
			if strings.Contains(text, w) {
				score++
			}
		}
		for _, w := range bearishWords {
			if strings.Contains(text, w) {
				score--
			}
		}
	}
	s := float64(score) / 10
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
