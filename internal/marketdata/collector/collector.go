// Package collector is the single entry point for candle tables. It routes
// a symbol through an ordered chain of providers by instrument class and
// shields them behind a TTL cache, a shared concurrency limit, per-symbol
// single flight, per-provider circuit breakers and an optional shared
// Redis layer.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"signalengine/internal/breaker"
	"signalengine/internal/cache"
	"signalengine/internal/marketdata"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
)

// Defaults for Config fields left at zero.
const (
	DefaultCacheTTL        = 60 * time.Second
	DefaultCacheSize       = 20
	DefaultConcurrency     = 5
	DefaultTimeout         = 10 * time.Second
	DefaultBreakerFailures = 5
	DefaultBreakerReset    = 30 * time.Second
)

// Config tunes the collector.
type Config struct {
	CacheTTL        time.Duration
	CacheSize       int
	Concurrency     int64
	Timeout         time.Duration // per provider call
	BreakerFailures int
	BreakerReset    time.Duration
}

func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = DefaultBreakerFailures
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = DefaultBreakerReset
	}
}

// Providers are the upstream adapters. A nil provider is skipped.
type Providers struct {
	Deriv   marketdata.Provider
	Yahoo   marketdata.Provider
	Binance marketdata.Provider
	Kucoin  marketdata.Provider
}

// SharedCache is the optional second cache level shared between processes.
// A miss is (nil, false, nil).
type SharedCache interface {
	GetTable(ctx context.Context, symbol string) (model.Table, bool, error)
	PutTable(ctx context.Context, symbol string, table model.Table) error
}

// Step is one routed provider attempt.
type Step struct {
	Provider string
	Symbol   string
}

// Collector fetches candle tables. Safe for concurrent use.
type Collector struct {
	cfg       Config
	providers map[string]marketdata.Provider
	breakers  map[string]*breaker.CircuitBreaker
	cache     *cache.TTL[string, model.Table]
	sem       *semaphore.Weighted
	group     singleflight.Group
	log       *slog.Logger

	// L2 and Metrics are optional; set them before the first Fetch.
	L2      SharedCache
	Metrics *metrics.Metrics
}

// New creates a collector.
func New(cfg Config, p Providers, log *slog.Logger) *Collector {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	c := &Collector{
		cfg:       cfg,
		providers: make(map[string]marketdata.Provider, 4),
		breakers:  make(map[string]*breaker.CircuitBreaker, 4),
		cache:     cache.New[string, model.Table](cfg.CacheTTL, cfg.CacheSize),
		sem:       semaphore.NewWeighted(cfg.Concurrency),
		log:       log.With("component", "collector"),
	}
	for _, prov := range []marketdata.Provider{p.Deriv, p.Yahoo, p.Binance, p.Kucoin} {
		if prov == nil {
			continue
		}
		name := prov.Name()
		c.providers[name] = prov
		cb := breaker.New(name, cfg.BreakerFailures, cfg.BreakerReset)
		cb.OnStateChange = func(name string, from, to breaker.State) {
			c.log.Warn("provider breaker transition", "provider", name, "from", from.String(), "to", to.String())
		}
		c.breakers[name] = cb
	}
	c.cache.OnEvict = func(key string) {
		if c.Metrics != nil {
			c.Metrics.CacheEvictions.Inc()
		}
	}
	return c
}

// Cache exposes the L1 cache, mainly for tests and metrics.
func (c *Collector) Cache() *cache.TTL[string, model.Table] { return c.cache }

// Stats returns the L1 cache counters.
func (c *Collector) Stats() cache.Stats { return c.cache.Stats() }

// Breakers returns the per-provider breakers so callers can attach
// observers (e.g. metrics.ObserveBreaker).
func (c *Collector) Breakers() []*breaker.CircuitBreaker {
	out := make([]*breaker.CircuitBreaker, 0, len(c.breakers))
	for _, name := range []string{"deriv", "yahoo", "binance", "kucoin"} {
		if cb, ok := c.breakers[name]; ok {
			out = append(out, cb)
		}
	}
	return out
}

// Route returns the ordered provider steps for symbol. ClassUnknown is
// detected from the symbol. Steps whose provider is not configured are
// omitted.
func (c *Collector) Route(symbol string, class model.Class) []Step {
	if class == model.ClassUnknown {
		class = model.DetectClass(symbol)
	}
	var steps []Step
	add := func(provider, sym string) {
		if _, ok := c.providers[provider]; ok {
			steps = append(steps, Step{Provider: provider, Symbol: sym})
		}
	}
	switch class {
	case model.ClassSynthetic:
		add("deriv", symbol)
	case model.ClassCrypto:
		add("binance", symbol)
		add("kucoin", symbol)
		add("yahoo", YahooCryptoSymbol(symbol))
	default: // forex, commodity
		if ds, ok := DerivSymbol(symbol); ok {
			add("deriv", ds)
		}
		add("yahoo", YahooSymbol(symbol))
	}
	return steps
}

// Fetch returns the candle table for symbol, or an empty table when every
// step failed or ctx ended first. It never returns an error; failures are
// logged. The shared fetch runs detached from any one caller's
// cancellation, so callers that join it keep their own deadline.
func (c *Collector) Fetch(ctx context.Context, symbol string, class model.Class) model.Table {
	if t, ok := c.cache.Get(symbol); ok {
		c.hit()
		return t
	}
	c.miss()

	ch := c.group.DoChan(symbol, func() (any, error) {
		// A flight that finished just before we joined may have filled it.
		if t, ok := c.cache.Get(symbol); ok {
			return t, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout())
		defer cancel()
		if t, ok := c.fromL2(fctx, symbol); ok {
			c.cache.Put(symbol, t)
			return t, nil
		}
		t := c.fetchChain(fctx, symbol, class)
		if !t.Empty() {
			c.cache.Put(symbol, t)
			c.toL2(fctx, symbol, t)
		}
		return t, nil
	})

	select {
	case <-ctx.Done():
		return model.Table{}
	case res := <-ch:
		if res.Shared {
			c.log.Debug("joined in-flight fetch", "symbol", symbol)
		}
		t, _ := res.Val.(model.Table)
		if t == nil {
			return model.Table{}
		}
		return t
	}
}

// flightTimeout bounds one shared fetch: an L2 read plus the longest chain.
func (c *Collector) flightTimeout() time.Duration {
	return 4 * c.cfg.Timeout
}

func (c *Collector) fetchChain(ctx context.Context, symbol string, class model.Class) model.Table {
	steps := c.Route(symbol, class)
	if len(steps) == 0 {
		c.log.Warn("no provider configured for symbol", "symbol", symbol, "class", string(class))
		return model.Table{}
	}
	for _, st := range steps {
		if ctx.Err() != nil {
			return model.Table{}
		}
		t, err := c.call(ctx, st)
		if err == nil && !t.Empty() {
			c.log.Debug("candles fetched", "symbol", symbol, "provider", st.Provider, "rows", t.Len())
			return t
		}
		c.log.Warn("provider step failed", "symbol", symbol, "provider", st.Provider, "upstream_symbol", st.Symbol, "error", err)
	}
	c.log.Error("all providers failed", "symbol", symbol, "steps", len(steps))
	return model.Table{}
}

// call runs one provider step under the semaphore, a timeout and the
// provider's breaker. An empty result is not a breaker failure.
func (c *Collector) call(ctx context.Context, st Step) (model.Table, error) {
	prov := c.providers[st.Provider]
	cb := c.breakers[st.Provider]

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var (
		table model.Table
		empty bool
	)
	err := cb.Execute(func() error {
		t, err := prov.Fetch(callCtx, st.Symbol)
		if errors.Is(err, marketdata.ErrEmpty) {
			empty = true
			return nil
		}
		table = t
		return err
	})

	outcome := "ok"
	switch {
	case errors.Is(err, breaker.ErrCircuitOpen):
		outcome = "open"
	case err != nil:
		outcome = "error"
	case empty || table.Empty():
		outcome = "empty"
		err = marketdata.ErrEmpty
	}
	if m := c.Metrics; m != nil {
		m.ProviderRequests.WithLabelValues(st.Provider, outcome).Inc()
		if outcome != "open" {
			m.FetchDuration.WithLabelValues(st.Provider).Observe(time.Since(start).Seconds())
		}
	}
	return table, err
}

func (c *Collector) fromL2(ctx context.Context, symbol string) (model.Table, bool) {
	if c.L2 == nil {
		return nil, false
	}
	t, ok, err := c.L2.GetTable(ctx, symbol)
	if err != nil {
		c.l2Error("get", symbol, err)
		return nil, false
	}
	if !ok || t.Empty() {
		return nil, false
	}
	return t, true
}

func (c *Collector) toL2(ctx context.Context, symbol string, t model.Table) {
	if c.L2 == nil {
		return
	}
	if err := c.L2.PutTable(ctx, symbol, t); err != nil {
		c.l2Error("put", symbol, err)
	}
}

func (c *Collector) l2Error(op, symbol string, err error) {
	c.log.Warn("shared candle cache unavailable", "op", op, "symbol", symbol, "error", err)
	if c.Metrics != nil {
		c.Metrics.L2Errors.Inc()
	}
}

func (c *Collector) hit() {
	if c.Metrics != nil {
		c.Metrics.CacheHits.Inc()
	}
}

func (c *Collector) miss() {
	if c.Metrics != nil {
		c.Metrics.CacheMisses.Inc()
	}
}
