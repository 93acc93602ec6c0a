// Package redis holds the optional shared caches: candle tables (second
// level behind the collector's in-process cache) and the latest ranked scan.
// Every call goes through a circuit breaker; callers treat errors as misses.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"signalengine/internal/breaker"
	"signalengine/internal/model"
)

const (
	candlePrefix = "candles:"
	scanKey      = "scan:latest"

	DefaultCandleTTL = 60 * time.Second
	DefaultScanTTL   = 300 * time.Second
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Store implements collector.SharedCache and the scanner's shared scan cache.
type Store struct {
	rdb       goredis.UniversalClient
	cb        *breaker.CircuitBreaker
	candleTTL time.Duration
	scanTTL   time.Duration
	log       *slog.Logger
}

// New wraps rdb. Non-positive TTLs take the defaults.
func New(rdb goredis.UniversalClient, candleTTL, scanTTL time.Duration, log *slog.Logger) *Store {
	if candleTTL <= 0 {
		candleTTL = DefaultCandleTTL
	}
	if scanTTL <= 0 {
		scanTTL = DefaultScanTTL
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		rdb:       rdb,
		cb:        breaker.New("redis", 5, 30*time.Second),
		candleTTL: candleTTL,
		scanTTL:   scanTTL,
		log:       log.With("component", "redis-store"),
	}
	s.cb.OnStateChange = func(name string, from, to breaker.State) {
		s.log.Warn("redis breaker transition", "from", from.String(), "to", to.String())
	}
	return s
}

// Breaker exposes the breaker for metrics.
func (s *Store) Breaker() *breaker.CircuitBreaker { return s.cb }

// Client returns the underlying client for health checks.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

// CandleKey returns the key a symbol's table is stored under.
func CandleKey(symbol string) string {
	return candlePrefix + strings.ReplaceAll(symbol, " ", "_")
}

// GetTable reads a cached table. A missing key is (nil, false, nil).
func (s *Store) GetTable(ctx context.Context, symbol string) (model.Table, bool, error) {
	var t model.Table
	ok, err := s.get(ctx, CandleKey(symbol), &t)
	if err != nil || !ok {
		return nil, false, err
	}
	return t, true, nil
}

// PutTable stores a table with the candle TTL.
func (s *Store) PutTable(ctx context.Context, symbol string, t model.Table) error {
	return s.set(ctx, CandleKey(symbol), t, s.candleTTL)
}

// GetScan reads the latest ranked scan.
func (s *Store) GetScan(ctx context.Context) ([]model.Signal, bool, error) {
	var sigs []model.Signal
	ok, err := s.get(ctx, scanKey, &sigs)
	if err != nil || !ok {
		return nil, false, err
	}
	return sigs, true, nil
}

// PutScan stores the latest ranked scan with the scan TTL.
func (s *Store) PutScan(ctx context.Context, sigs []model.Signal) error {
	return s.set(ctx, scanKey, sigs, s.scanTTL)
}

func (s *Store) get(ctx context.Context, key string, out any) (bool, error) {
	var b []byte
	err := s.cb.Execute(func() error {
		v, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		b = v
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		// corrupted entry: drop it and report a miss
		_ = s.rdb.Del(ctx, key).Err()
		s.log.Warn("dropped corrupt cache entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis marshal %s: %w", key, err)
	}
	err = s.cb.Execute(func() error {
		return s.rdb.Set(ctx, key, b, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
