package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg := Load()

	if cfg.CandleCacheTTL != 60*time.Second {
		t.Errorf("CandleCacheTTL = %s, want 60s", cfg.CandleCacheTTL)
	}
	if cfg.CandleCacheSize != 20 {
		t.Errorf("CandleCacheSize = %d, want 20", cfg.CandleCacheSize)
	}
	if cfg.FetchConcurrency != 5 {
		t.Errorf("FetchConcurrency = %d, want 5", cfg.FetchConcurrency)
	}
	if cfg.ScanCacheTTL != 300*time.Second || cfg.ScanTopN != 10 || cfg.ScanConcurrency != 3 {
		t.Errorf("unexpected scan defaults: %+v", cfg)
	}
	if cfg.AutotradeInterval != 5*time.Minute {
		t.Errorf("AutotradeInterval = %s, want 5m", cfg.AutotradeInterval)
	}
	if cfg.AutotradeLive {
		t.Error("expected paper execution by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("FETCH_CONCURRENCY", "3")
	t.Setenv("CANDLE_CACHE_TTL", "2m")
	t.Setenv("AUTOTRADE_LIVE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()
	if cfg.FetchConcurrency != 3 {
		t.Errorf("FetchConcurrency = %d, want 3", cfg.FetchConcurrency)
	}
	if cfg.CandleCacheTTL != 2*time.Minute {
		t.Errorf("CandleCacheTTL = %s, want 2m", cfg.CandleCacheTTL)
	}
	if !cfg.AutotradeLive {
		t.Error("expected AutotradeLive=true")
	}
	brokers := cfg.ParseKafkaBrokers()
	if len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", brokers)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signalengine.yaml")
	if err := os.WriteFile(path, []byte("scan_top_n: 4\nsqlite_path: /tmp/x.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	if cfg.ScanTopN != 4 {
		t.Errorf("ScanTopN = %d, want 4", cfg.ScanTopN)
	}
	if cfg.SQLitePath != "/tmp/x.db" {
		t.Errorf("SQLitePath = %q, want /tmp/x.db", cfg.SQLitePath)
	}
}

func TestValidate_RejectsZeroSizes(t *testing.T) {
	cfg := &Config{FetchConcurrency: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero concurrency")
	}
}
