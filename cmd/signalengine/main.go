// cmd/signalengine runs the long-lived engine: the market radar, the
// autotrader loop, notification sinks and the /metrics and /healthz server.
//
// Config comes from the environment (see config.Load). STAGING_MODE=true
// restricts market data to the Deriv feed, normally a local cmd/derivsim.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalengine/config"
	"signalengine/internal/logger"
	"signalengine/internal/metrics"
	"signalengine/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[signalengine] %v", err)
	}
	lg := logger.Init("signalengine", logger.ParseLevel(cfg.LogLevel))
	lg.Info("starting", "staging", cfg.StagingMode, "live", cfg.AutotradeLive)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prom := metrics.NewMetrics()
	svc, err := service.New(ctx, cfg, prom, lg)
	if err != nil {
		lg.Error("init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, svc.Health)
	metricsSrv.Start()

	if err := svc.Run(ctx); err != nil {
		lg.Error("engine stopped with error", "error", err)
	}
	lg.Info("shutdown signal received, cleaning up")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	lg.Info("shutdown complete")
}
