// cmd/scan runs one market scan, or evaluates a single asset, and prints
// the result as JSON. It uses the same wiring as the engine without the
// background loops.
//
// Usage:
//
//	go run ./cmd/scan                      # curated market scan, top 10
//	go run ./cmd/scan -asset BTC/USDT      # one asset, full mode
//	go run ./cmd/scan -asset R_100 -duration 2m
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"signalengine/config"
	"signalengine/internal/logger"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/scanner"
	"signalengine/internal/service"
	sig "signalengine/internal/signal"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	asset := flag.String("asset", "", "Evaluate a single asset instead of scanning")
	class := flag.String("class", "", "Instrument class for -asset (forex, crypto, synthetic, commodity); detected when empty")
	duration := flag.String("duration", "", "Manual expiry for -asset, e.g. 5m, 1h, 30s")
	fast := flag.Bool("fast", false, "Skip the news sentiment lookup for -asset")
	assets := flag.String("assets", "", "Comma-separated instruments to scan (default: curated list)")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[scan] %v", err)
	}
	lg := logger.Init("scan", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := service.New(ctx, cfg, metrics.NewMetricsWith(prometheus.NewRegistry()), lg)
	if err != nil {
		log.Fatalf("[scan] init failed: %v", err)
	}
	defer svc.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *asset != "" {
		inst := model.NewInstrument(strings.TrimSpace(*asset), model.Class(*class))
		s, err := svc.Scanner.Evaluate(ctx, inst, sig.Options{Fast: *fast, Duration: *duration})
		if err != nil {
			log.Fatalf("[scan] %v", err)
		}
		if s == nil {
			log.Printf("[scan] no signal for %s (no data or conflicting strategies)", inst.Symbol)
			os.Exit(2)
		}
		if err := svc.Store.RecordSignal(ctx, *s); err != nil {
			lg.Warn("record signal failed", "error", err)
		}
		_ = enc.Encode(s)
		return
	}

	insts := scanner.DefaultInstruments()
	if *assets != "" {
		insts = insts[:0]
		for _, a := range model.ParseAssetList(*assets) {
			insts = append(insts, model.NewInstrument(a, model.ClassUnknown))
		}
	}
	results := svc.Scanner.Scan(ctx, insts)
	if len(results) == 0 {
		log.Printf("[scan] no signals across %d instruments", len(insts))
	}
	_ = enc.Encode(results)
}
