// cmd/derivsim serves a local Deriv-compatible WebSocket API with
// deterministic synthetic candles and simulated contract purchases, so the
// engine can run in STAGING_MODE without real credentials.
//
// Config (env vars):
//
//	DERIVSIM_ADDR    listen address (default ":9001")
//	DERIVSIM_TOKEN   API token authorize accepts (default: any)
//	DERIVSIM_SYMBOLS comma-separated symbol whitelist (default: all)
//
// Point the engine at it with DERIV_WS_URL=ws://localhost:9001/websockets/v3.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalengine/internal/derivsim"
	"signalengine/internal/logger"
	"signalengine/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	lg := logger.Init("derivsim", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	addr := getEnv("DERIVSIM_ADDR", ":9001")
	sim := derivsim.New(derivsim.Options{
		Token:   os.Getenv("DERIVSIM_TOKEN"),
		Symbols: model.ParseAssetList(os.Getenv("DERIVSIM_SYMBOLS")),
	}, lg)

	srv := &http.Server{
		Addr:              addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		lg.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[derivsim] %v", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down", "clients", sim.Clients())
	sim.CloseAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
