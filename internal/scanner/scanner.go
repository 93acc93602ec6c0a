// Package scanner ranks signals across a set of instruments. A whole scan
// is cached as one unit and concurrent callers share a single computation.
package scanner

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"signalengine/internal/cache"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/signal"
)

// Defaults for Config fields left at zero.
const (
	DefaultCacheTTL      = 300 * time.Second
	DefaultConcurrency   = 3
	DefaultTopN          = 10
	DefaultMinConfidence = 1.0
	DefaultTimeout       = 2 * time.Minute
)

// Config tunes the scanner.
type Config struct {
	CacheTTL      time.Duration
	Concurrency   int
	TopN          int
	MinConfidence float64
	Timeout       time.Duration // bounds one shared scan
}

func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = DefaultMinConfidence
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Fetcher returns candle tables; an empty table means nothing is available.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, class model.Class) model.Table
}

// Generator turns one table into a signal, or nil when there is none.
type Generator interface {
	Generate(ctx context.Context, asset string, table model.Table, opts signal.Options) (*model.Signal, error)
}

// SharedCache holds the latest default scan for other processes.
type SharedCache interface {
	GetScan(ctx context.Context) ([]model.Signal, bool, error)
	PutScan(ctx context.Context, sigs []model.Signal) error
}

// DefaultInstruments is the curated market scan list.
func DefaultInstruments() []model.Instrument {
	return []model.Instrument{
		{Symbol: "EURUSD=X", Class: model.ClassForex},
		{Symbol: "GBPUSD=X", Class: model.ClassForex},
		{Symbol: "USDJPY=X", Class: model.ClassForex},
		{Symbol: "BTC/USDT", Class: model.ClassCrypto},
		{Symbol: "ETH/USDT", Class: model.ClassCrypto},
		{Symbol: "SOL/USDT", Class: model.ClassCrypto},
		{Symbol: "1HZ100V", Class: model.ClassSynthetic},
		{Symbol: "1HZ75V", Class: model.ClassSynthetic},
		{Symbol: "C1000", Class: model.ClassSynthetic},
		{Symbol: "B1000", Class: model.ClassSynthetic},
		{Symbol: "GC=F", Class: model.ClassCommodity},
		{Symbol: "SI=F", Class: model.ClassCommodity},
		{Symbol: "CL=F", Class: model.ClassCommodity},
	}
}

// Scanner evaluates instruments and ranks the results. Safe for concurrent use.
type Scanner struct {
	cfg     Config
	fetcher Fetcher
	gen     Generator
	cache   *cache.TTL[string, []model.Signal]
	group   singleflight.Group
	log     *slog.Logger

	defaultKey string

	// Shared and Metrics are optional; set them before the first Scan.
	Shared  SharedCache
	Metrics *metrics.Metrics
}

// New creates a scanner.
func New(cfg Config, fetcher Fetcher, gen Generator, log *slog.Logger) *Scanner {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		cfg:        cfg,
		fetcher:    fetcher,
		gen:        gen,
		cache:      cache.New[string, []model.Signal](cfg.CacheTTL, 8),
		log:        log.With("component", "scanner"),
		defaultKey: scanKey(DefaultInstruments()),
	}
}

// Cache exposes the result cache, mainly for tests.
func (s *Scanner) Cache() *cache.TTL[string, []model.Signal] { return s.cache }

// Concurrency returns the outer fan-out limit.
func (s *Scanner) Concurrency() int { return s.cfg.Concurrency }

// Scan returns up to TopN signals with confidence >= MinConfidence, sorted
// by confidence descending. Results are cached per instrument list for
// CacheTTL; an empty result is not cached. The shared computation ignores
// the cancellation of whichever caller started it; a caller whose ctx ends
// first gets an empty slice.
func (s *Scanner) Scan(ctx context.Context, instruments []model.Instrument) []model.Signal {
	key := scanKey(instruments)
	if sigs, ok := s.cache.Get(key); ok {
		s.cacheHit()
		return clone(sigs)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		if sigs, ok := s.cache.Get(key); ok {
			s.cacheHit()
			return sigs, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()
		if key == s.defaultKey {
			if sigs, ok := s.fromShared(fctx); ok {
				s.cache.Put(key, sigs)
				return sigs, nil
			}
		}
		sigs := s.scan(fctx, instruments)
		if len(sigs) > 0 && fctx.Err() == nil {
			s.cache.Put(key, sigs)
			if key == s.defaultKey {
				s.toShared(fctx, sigs)
			}
		}
		return sigs, nil
	})

	select {
	case <-ctx.Done():
		return []model.Signal{}
	case res := <-ch:
		sigs, _ := res.Val.([]model.Signal)
		return clone(sigs)
	}
}

func (s *Scanner) scan(ctx context.Context, instruments []model.Instrument) []model.Signal {
	start := time.Now()
	found, err := s.EvaluateAll(ctx, instruments, signal.Options{Fast: true})
	if err != nil {
		s.log.Warn("scan interrupted", "error", err, "partial", len(found))
	}

	out := make([]model.Signal, 0, len(found))
	for _, inst := range instruments {
		sig, ok := found[inst.Symbol]
		if !ok || sig.Confidence < s.cfg.MinConfidence {
			continue
		}
		out = append(out, sig)
		delete(found, inst.Symbol)
	}
	Rank(out)
	if len(out) > s.cfg.TopN {
		out = out[:s.cfg.TopN]
	}

	if s.Metrics != nil {
		s.Metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.Metrics.ScanResults.Set(float64(len(out)))
	}
	s.log.Info("scan complete", "instruments", len(instruments), "signals", len(out), "duration", time.Since(start))
	return out
}

// Evaluate fetches and evaluates one instrument. It returns (nil, nil) when
// no candles are available or no signal results.
func (s *Scanner) Evaluate(ctx context.Context, inst model.Instrument, opts signal.Options) (*model.Signal, error) {
	if inst.Class == model.ClassUnknown {
		inst = model.NewInstrument(inst.Symbol, model.ClassUnknown)
	}
	table := s.fetcher.Fetch(ctx, inst.Symbol, inst.Class)
	if table.Empty() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.log.Debug("no candles", "symbol", inst.Symbol)
		return nil, nil
	}
	sig, err := s.gen.Generate(ctx, inst.Symbol, table, opts)
	if err != nil || sig == nil {
		return nil, err
	}
	out := *sig
	out.Class = inst.Class
	return &out, nil
}

// EvaluateAll evaluates instruments in parallel, at most Concurrency at a
// time, and returns the signals keyed by symbol. Instruments without a
// signal are absent. A non-nil error means ctx ended; the map then holds
// whatever finished.
func (s *Scanner) EvaluateAll(ctx context.Context, instruments []model.Instrument, opts signal.Options) (map[string]model.Signal, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]model.Signal, len(instruments))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, inst := range instruments {
		inst := inst
		g.Go(func() error {
			sig, err := s.Evaluate(gctx, inst, opts)
			if err != nil {
				return err
			}
			if sig == nil {
				return nil
			}
			mu.Lock()
			out[inst.Symbol] = *sig
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	result := make(map[string]model.Signal, len(out))
	for k, v := range out {
		result[k] = v
	}
	return result, err
}

// Rank sorts signals by confidence descending, breaking ties by asset.
func Rank(sigs []model.Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		if sigs[i].Confidence != sigs[j].Confidence {
			return sigs[i].Confidence > sigs[j].Confidence
		}
		return sigs[i].Asset < sigs[j].Asset
	})
}

func (s *Scanner) fromShared(ctx context.Context) ([]model.Signal, bool) {
	if s.Shared == nil {
		return nil, false
	}
	sigs, ok, err := s.Shared.GetScan(ctx)
	if err != nil {
		s.log.Warn("shared scan cache read failed", "error", err)
		return nil, false
	}
	if !ok || len(sigs) == 0 {
		return nil, false
	}
	s.cacheHit()
	return sigs, true
}

func (s *Scanner) toShared(ctx context.Context, sigs []model.Signal) {
	if s.Shared == nil {
		return
	}
	if err := s.Shared.PutScan(ctx, sigs); err != nil {
		s.log.Warn("shared scan cache write failed", "error", err)
	}
}

func (s *Scanner) cacheHit() {
	if s.Metrics != nil {
		s.Metrics.ScanCacheHits.Inc()
	}
}

func scanKey(instruments []model.Instrument) string {
	keys := make([]string, len(instruments))
	for i, inst := range instruments {
		keys[i] = inst.Key()
	}
	return strings.Join(keys, ",")
}

func clone(sigs []model.Signal) []model.Signal {
	if sigs == nil {
		return []model.Signal{}
	}
	out := make([]model.Signal, len(sigs))
	copy(out, sigs)
	return out
}
