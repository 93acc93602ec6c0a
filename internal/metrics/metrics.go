package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	// Data collector
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome
	FetchDuration    *prometheus.HistogramVec // labels: provider
	L2Errors         prometheus.Counter

	// Circuit breakers (one per provider plus redis)
	BreakerState *prometheus.GaugeVec   // labels: name; 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec // labels: name

	// Signal pipeline
	SignalsTotal  *prometheus.CounterVec // labels: direction
	ScanDuration  prometheus.Histogram
	ScanCacheHits prometheus.Counter
	ScanResults   prometheus.Gauge
	RadarAlerts   prometheus.Counter
	BusDrops      *prometheus.CounterVec // labels: subscriber

	// Autotrader
	AutotradeCycles *prometheus.CounterVec // labels: outcome=ok|error
	AutotradeState  prometheus.Gauge
	TradesTotal     *prometheus.CounterVec // labels: status

	// Notification sinks
	NotificationsTotal *prometheus.CounterVec // labels: sink, outcome
}

// NewMetrics registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cache_hits_total",
			Help: "Candle table requests served from the in-process cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cache_misses_total",
			Help: "Candle table requests that missed the in-process cache",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cache_evictions_total",
			Help: "Entries evicted by capacity pressure",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_provider_requests_total",
			Help: "Provider calls by outcome (ok, empty, error, open)",
		}, []string{"provider", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collector_fetch_duration_seconds",
			Help:    "Provider call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		L2Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_l2_errors_total",
			Help: "Shared Redis candle cache errors (ignored)",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"name"}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_generated_total",
			Help: "Signals produced by the fusion step",
		}, []string{"direction"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "Full market scan latency (cache misses only)",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		ScanCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_cache_hits_total",
			Help: "Scans served from the global scan cache",
		}),
		ScanResults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scan_results",
			Help: "Signals in the latest ranked scan",
		}),
		RadarAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radar_alerts_total",
			Help: "High-confidence signals published by the radar",
		}),
		BusDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbus_drops_total",
			Help: "Signals dropped by the bus per slow subscriber",
		}, []string{"subscriber"}),

		AutotradeCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotrader_cycles_total",
			Help: "Autotrader cycles by outcome",
		}, []string{"outcome"}),
		AutotradeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autotrader_state",
			Help: "Autotrader state (0=idle, 1=scanning, 2=distributing, 3=sleeping, 4=stopped)",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotrader_trades_total",
			Help: "Executed trades by result status",
		}, []string{"status"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.ProviderRequests,
		m.FetchDuration,
		m.L2Errors,
		m.BreakerState,
		m.BreakerTrips,
		m.SignalsTotal,
		m.ScanDuration,
		m.ScanCacheHits,
		m.ScanResults,
		m.RadarAlerts,
		m.BusDrops,
		m.AutotradeCycles,
		m.AutotradeState,
		m.TradesTotal,
		m.NotificationsTotal,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastScanAt     time.Time `json:"last_scan_at"`
	LastCycleAt    time.Time `json:"last_cycle_at"`
	AutotradeState string    `json:"autotrade_state"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScan(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetAutotrade(state string, at time.Time) {
	h.mu.Lock()
	h.AutotradeState = state
	if !at.IsZero() {
		h.LastCycleAt = at
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb goredis.UniversalClient) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb goredis.UniversalClient, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Redis only counts when enabled;
// the shared caches are optional and the engine runs without them.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	if redisDown || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	scanAge := ""
	if !h.LastScanAt.IsZero() {
		scanAge = time.Since(h.LastScanAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastScanAt      string  `json:"last_scan_at"`
		ScanAge         string  `json:"scan_age"`
		LastCycleAt     string  `json:"last_cycle_at"`
		AutotradeState  string  `json:"autotrade_state"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastScanAt:      h.LastScanAt.Format(time.RFC3339),
		ScanAge:         scanAge,
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		AutotradeState:  h.AutotradeState,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Warn("healthz encode failed", "error", err)
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Warn("metrics server shutdown", "error", err)
	}
}
