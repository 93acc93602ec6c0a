// Package service wires the signal engine: stores, providers, collector,
// signal generator, scanner, radar, autotrader and notification sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"signalengine/config"
	"signalengine/internal/autotrader"
	"signalengine/internal/execution"
	"signalengine/internal/marketdata/binance"
	"signalengine/internal/marketdata/collector"
	"signalengine/internal/marketdata/derivfeed"
	"signalengine/internal/marketdata/kucoin"
	"signalengine/internal/marketdata/yahoo"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/notification"
	"signalengine/internal/scanner"
	"signalengine/internal/sentiment"
	"signalengine/internal/signal"
	"signalengine/internal/signalbus"
	redisstore "signalengine/internal/store/redis"
	sqlitestore "signalengine/internal/store/sqlite"
	"signalengine/pkg/deriv"
)

// Service is the top-level orchestrator. It owns every long-lived
// dependency and coordinates the background loops.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus

	Store *sqlitestore.Store
	Redis *redisstore.Store // nil when REDIS_ADDR is empty or unreachable
	rdb   goredis.UniversalClient

	Deriv      *deriv.Client
	Collector  *collector.Collector
	Generator  *signal.Generator
	Scanner    *scanner.Scanner
	Bus        *signalbus.Bus
	Radar      *scanner.Radar
	Trader     *autotrader.Trader
	Dispatcher *notification.Dispatcher
	Executor   model.Executor

	closers []func() error
}

// New connects the stores and builds every component. Redis is optional:
// a connection failure is logged and the engine runs without the shared
// caches.
func New(ctx context.Context, cfg *config.Config, prom *metrics.Metrics, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if prom == nil {
		prom = metrics.NewMetrics()
	}
	svc := &Service{
		cfg:     cfg,
		log:     log,
		Metrics: prom,
		Health:  metrics.NewHealthStatus(),
	}

	// ---- SQLite ----
	if cfg.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	store, err := sqlitestore.Open(cfg.SQLitePath, log)
	if err != nil {
		return nil, err
	}
	svc.Store = store
	svc.closers = append(svc.closers, store.Close)
	svc.Health.SetSQLiteOK(true)

	// ---- Redis (optional) ----
	svc.Health.SetRedisEnabled(cfg.RedisAddr != "")
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("redis unavailable, continuing without shared caches", "addr", cfg.RedisAddr, "error", err)
		} else {
			svc.rdb = rdb
			svc.Redis = redisstore.New(rdb, cfg.CandleCacheTTL, cfg.ScanCacheTTL, log)
			prom.ObserveBreaker(svc.Redis.Breaker())
			svc.closers = append(svc.closers, rdb.Close)
			log.Info("redis cache ready", "addr", cfg.RedisAddr)
		}
	}

	// ---- Providers ----
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	svc.Deriv = deriv.NewClient(deriv.Config{
		URL:     cfg.DerivWSURL,
		AppID:   cfg.DerivAppID,
		Token:   cfg.DerivAPIToken,
		Timeout: cfg.ProviderTimeout,
	})
	providers := collector.Providers{Deriv: derivfeed.New(svc.Deriv, 0, 0)}
	if cfg.StagingMode {
		log.Warn("staging mode: deriv feed only", "url", cfg.DerivWSURL)
	} else {
		providers.Yahoo = yahoo.New(yahoo.Config{BaseURL: cfg.YahooBaseURL}, httpClient)
		providers.Binance = binance.New(binance.Config{BaseURL: cfg.BinanceBaseURL}, httpClient)
		providers.Kucoin = kucoin.New(kucoin.Config{BaseURL: cfg.KucoinBaseURL}, httpClient)
	}

	// ---- Collector ----
	svc.Collector = collector.New(collector.Config{
		CacheTTL:    cfg.CandleCacheTTL,
		CacheSize:   cfg.CandleCacheSize,
		Concurrency: int64(cfg.FetchConcurrency),
		Timeout:     cfg.ProviderTimeout,
	}, providers, log)
	svc.Collector.Metrics = prom
	if svc.Redis != nil {
		svc.Collector.L2 = svc.Redis
	}
	for _, cb := range svc.Collector.Breakers() {
		prom.ObserveBreaker(cb)
	}

	// ---- Signal generation ----
	var sent signal.Sentiment
	if cfg.NewsAPIKey != "" {
		sent = sentiment.New(sentiment.Config{
			APIKey:  cfg.NewsAPIKey,
			BaseURL: cfg.NewsAPIBaseURL,
			Timeout: cfg.ProviderTimeout,
		}, httpClient, log)
	}
	svc.Generator = signal.New(nil, sent, log)
	svc.Generator.Metrics = prom

	svc.Scanner = scanner.New(scanner.Config{
		CacheTTL:      cfg.ScanCacheTTL,
		Concurrency:   cfg.ScanConcurrency,
		TopN:          cfg.ScanTopN,
		MinConfidence: cfg.ScanMinConfidence,
	}, svc.Collector, svc.Generator, log)
	svc.Scanner.Metrics = prom
	if svc.Redis != nil {
		svc.Scanner.Shared = svc.Redis
	}

	// ---- Notification ----
	svc.Bus = signalbus.New(64, log)
	svc.Bus.OnDrop = func(sub string) {
		prom.BusDrops.WithLabelValues(sub).Inc()
	}
	svc.Dispatcher = notification.NewDispatcher(svc.notificationConfig(), log)
	svc.Dispatcher.Metrics = prom

	svc.Radar = scanner.NewRadar(scanner.RadarConfig{
		Interval:      cfg.RadarInterval,
		MinConfidence: cfg.RadarMinConfidence,
		Dedup:         cfg.RadarDedupWindow,
	}, scanTracker{svc.Scanner, svc.Health}, svc.Bus, log)
	svc.Radar.Metrics = prom

	// ---- Autotrader ----
	if cfg.AutotradeLive {
		svc.Executor = execution.NewDerivExecutor(svc.Deriv, derivCode, log)
		log.Warn("live execution enabled", "broker", "deriv", "token_set", svc.Deriv.HasToken())
	} else {
		svc.Executor = execution.NewPaperExecutor(log)
	}
	svc.Trader = autotrader.New(autotrader.Config{
		Interval: cfg.AutotradeInterval,
		Backoff:  cfg.AutotradeBackoff,
	}, store, store, svc.Executor, svc.Scanner, log)
	svc.Trader.Metrics = prom
	svc.Trader.Health = svc.Health

	return svc, nil
}

func (svc *Service) notificationConfig() notification.DispatcherConfig {
	cfg := svc.cfg
	nc := notification.DispatcherConfig{
		Users:    svc.Store,
		Recorder: svc.Store,
		Timeout:  cfg.ProviderTimeout,
	}
	if cfg.TelegramBotToken != "" {
		tg := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, svc.log)
		nc.Direct = tg
		if cfg.TelegramChatID != "" {
			nc.Sinks = append(nc.Sinks, notification.Sink{Name: "telegram", Notifier: tg})
		}
	} else {
		nc.Direct = notification.NewLogNotifier(svc.log)
	}
	if cfg.WebhookURL != "" {
		nc.Sinks = append(nc.Sinks, notification.Sink{Name: "webhook", Notifier: notification.NewWebhookNotifier(cfg.WebhookURL, svc.log)})
	}
	if brokers := cfg.ParseKafkaBrokers(); len(brokers) > 0 {
		k := notification.NewKafkaNotifier(brokers, cfg.KafkaTopic)
		svc.closers = append(svc.closers, k.Close)
		nc.Sinks = append(nc.Sinks, notification.Sink{Name: "kafka", Notifier: k})
	}
	return nc
}

// Run starts the signal bus, the radar, the autotrader and the liveness
// checker, and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	svc.Health.StartLivenessChecker(ctx, svc.rdb, svc.Store.DB(), 10*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	drained := svc.Bus.Attach(gctx, "dispatcher", svc.Dispatcher.Handle)
	g.Go(func() error {
		svc.Bus.Run(gctx)
		return nil
	})
	g.Go(func() error { return ignoreCanceled(svc.Radar.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(svc.Trader.Run(gctx)) })

	err := g.Wait()
	<-drained
	return err
}

// Close releases stores and sinks in reverse order of creation.
func (svc *Service) Close() {
	for i := len(svc.closers) - 1; i >= 0; i-- {
		if err := svc.closers[i](); err != nil {
			svc.log.Warn("close failed", "error", err)
		}
	}
	svc.closers = nil
}

// scanTracker records the time of every completed scan for /healthz.
type scanTracker struct {
	s      *scanner.Scanner
	health *metrics.HealthStatus
}

func (t scanTracker) Scan(ctx context.Context, instruments []model.Instrument) []model.Signal {
	out := t.s.Scan(ctx, instruments)
	t.health.SetLastScan(time.Now())
	return out
}

func derivCode(asset string) string {
	if ds, ok := collector.DerivSymbol(asset); ok {
		return ds
	}
	return asset
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
