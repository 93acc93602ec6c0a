package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"signalengine/internal/logger"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
)

// Radar defaults.
const (
	DefaultRadarInterval      = 30 * time.Minute
	DefaultRadarMinConfidence = 75.0
	DefaultRadarDedup         = time.Hour
)

// RadarConfig tunes the background sweep.
type RadarConfig struct {
	Interval      time.Duration
	MinConfidence float64
	Dedup         time.Duration
	Instruments   []model.Instrument // nil means DefaultInstruments
}

// Publisher receives high-confidence signals.
type Publisher interface {
	Publish(ctx context.Context, sig model.Signal) error
}

// Sweeper produces a ranked scan.
type Sweeper interface {
	Scan(ctx context.Context, instruments []model.Instrument) []model.Signal
}

// Radar periodically scans the market and publishes strong signals,
// suppressing a repeat of the same asset and direction inside the dedup window.
type Radar struct {
	cfg     RadarConfig
	scanner Sweeper
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	last map[string]time.Time

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// NewRadar creates a radar.
func NewRadar(cfg RadarConfig, scanner Sweeper, pub Publisher, log *slog.Logger) *Radar {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRadarInterval
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultRadarMinConfidence
	}
	if cfg.Dedup <= 0 {
		cfg.Dedup = DefaultRadarDedup
	}
	if cfg.Instruments == nil {
		cfg.Instruments = DefaultInstruments()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Radar{
		cfg:     cfg,
		scanner: scanner,
		pub:     pub,
		log:     log.With("component", "radar"),
		now:     time.Now,
		last:    make(map[string]time.Time),
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *Radar) WithClock(now func() time.Time) *Radar {
	r.now = now
	return r
}

// Run sweeps immediately and then every Interval until ctx is done.
func (r *Radar) Run(ctx context.Context) error {
	r.log.Info("radar started", "interval", r.cfg.Interval, "min_confidence", r.cfg.MinConfidence)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		r.Sweep(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("radar stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one scan and publishes every new qualifying signal. It returns
// the number published.
func (r *Radar) Sweep(ctx context.Context) int {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("radar", r.now()))
	sigs := r.scanner.Scan(ctx, r.cfg.Instruments)

	published := 0
	for _, sig := range sigs {
		if sig.Confidence < r.cfg.MinConfidence {
			continue
		}
		if !r.claim(sig.DedupKey()) {
			continue
		}
		if err := r.pub.Publish(ctx, sig); err != nil {
			r.log.Warn("publish failed", append(logger.LogWithTrace(ctx), "asset", sig.Asset, "error", err)...)
			r.release(sig.DedupKey())
			continue
		}
		published++
		if r.Metrics != nil {
			r.Metrics.RadarAlerts.Inc()
		}
	}
	r.log.Info("radar sweep", append(logger.LogWithTrace(ctx), "signals", len(sigs), "published", published)...)
	return published
}

// claim marks key as alerted now unless it was alerted within the window.
func (r *Radar) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, at := range r.last {
		if now.Sub(at) >= r.cfg.Dedup {
			delete(r.last, k)
		}
	}
	if _, seen := r.last[key]; seen {
		return false
	}
	r.last[key] = now
	return true
}

func (r *Radar) release(key string) {
	r.mu.Lock()
	delete(r.last, key)
	r.mu.Unlock()
}
