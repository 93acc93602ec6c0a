package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. Values come from the
// environment (a .env file is loaded first when present) with an optional
// YAML file named by CONFIG_FILE underneath.
type Config struct {
	LogLevel string

	// Infrastructure
	MetricsAddr   string
	SQLitePath    string
	RedisAddr     string // empty disables the shared Redis caches
	RedisPassword string

	// Providers
	DerivAppID      string
	DerivAPIToken   string
	DerivWSURL      string
	YahooBaseURL    string
	BinanceBaseURL  string
	KucoinBaseURL   string
	NewsAPIKey      string
	NewsAPIBaseURL  string
	ProviderTimeout time.Duration

	// Data collector
	FetchConcurrency int
	CandleCacheTTL   time.Duration
	CandleCacheSize  int

	// Scanner
	ScanCacheTTL      time.Duration
	ScanConcurrency   int
	ScanTopN          int
	ScanMinConfidence float64

	// Autotrader
	AutotradeInterval time.Duration
	AutotradeBackoff  time.Duration
	AutotradeLive     bool // false routes executions to the paper executor

	// Radar
	RadarInterval      time.Duration
	RadarMinConfidence float64
	RadarDedupWindow   time.Duration

	// Notification sinks (each optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
	KafkaBrokers     string // comma-separated
	KafkaTopic       string

	// Staging points the Deriv feed at a local derivsim server.
	StagingMode bool
}

var defaults = map[string]any{
	"LOG_LEVEL":      "info",
	"METRICS_ADDR":   ":9090",
	"SQLITE_PATH":    "data/signals.db",
	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",

	"DERIV_APP_ID":      "1089",
	"DERIV_API_TOKEN":   "",
	"DERIV_WS_URL":      "wss://ws.binaryws.com/websockets/v3",
	"YAHOO_BASE_URL":    "https://query1.finance.yahoo.com",
	"BINANCE_BASE_URL":  "https://api.binance.com",
	"KUCOIN_BASE_URL":   "https://api.kucoin.com",
	"NEWS_API_KEY":      "",
	"NEWS_API_BASE_URL": "https://newsapi.org",
	"PROVIDER_TIMEOUT":  10 * time.Second,

	"FETCH_CONCURRENCY": 5,
	"CANDLE_CACHE_TTL":  60 * time.Second,
	"CANDLE_CACHE_SIZE": 20,

	"SCAN_CACHE_TTL":      300 * time.Second,
	"SCAN_CONCURRENCY":    3,
	"SCAN_TOP_N":          10,
	"SCAN_MIN_CONFIDENCE": 1.0,

	"AUTOTRADE_INTERVAL": 300 * time.Second,
	"AUTOTRADE_BACKOFF":  60 * time.Second,
	"AUTOTRADE_LIVE":     false,

	"RADAR_INTERVAL":       30 * time.Minute,
	"RADAR_MIN_CONFIDENCE": 75.0,
	"RADAR_DEDUP_WINDOW":   time.Hour,

	"TELEGRAM_BOT_TOKEN": "",
	"TELEGRAM_CHAT_ID":   "",
	"WEBHOOK_URL":        "",
	"KAFKA_BROKERS":      "",
	"KAFKA_TOPIC":        "signals",

	"STAGING_MODE": false,
}

// Load reads configuration with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] could not read %s: %v", path, err)
		} else {
			log.Printf("[config] loaded %s", path)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		LogLevel:      v.GetString("LOG_LEVEL"),
		MetricsAddr:   v.GetString("METRICS_ADDR"),
		SQLitePath:    v.GetString("SQLITE_PATH"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		DerivAppID:      v.GetString("DERIV_APP_ID"),
		DerivAPIToken:   v.GetString("DERIV_API_TOKEN"),
		DerivWSURL:      v.GetString("DERIV_WS_URL"),
		YahooBaseURL:    v.GetString("YAHOO_BASE_URL"),
		BinanceBaseURL:  v.GetString("BINANCE_BASE_URL"),
		KucoinBaseURL:   v.GetString("KUCOIN_BASE_URL"),
		NewsAPIKey:      v.GetString("NEWS_API_KEY"),
		NewsAPIBaseURL:  v.GetString("NEWS_API_BASE_URL"),
		ProviderTimeout: v.GetDuration("PROVIDER_TIMEOUT"),

		FetchConcurrency: v.GetInt("FETCH_CONCURRENCY"),
		CandleCacheTTL:   v.GetDuration("CANDLE_CACHE_TTL"),
		CandleCacheSize:  v.GetInt("CANDLE_CACHE_SIZE"),

		ScanCacheTTL:      v.GetDuration("SCAN_CACHE_TTL"),
		ScanConcurrency:   v.GetInt("SCAN_CONCURRENCY"),
		ScanTopN:          v.GetInt("SCAN_TOP_N"),
		ScanMinConfidence: v.GetFloat64("SCAN_MIN_CONFIDENCE"),

		AutotradeInterval: v.GetDuration("AUTOTRADE_INTERVAL"),
		AutotradeBackoff:  v.GetDuration("AUTOTRADE_BACKOFF"),
		AutotradeLive:     v.GetBool("AUTOTRADE_LIVE"),

		RadarInterval:      v.GetDuration("RADAR_INTERVAL"),
		RadarMinConfidence: v.GetFloat64("RADAR_MIN_CONFIDENCE"),
		RadarDedupWindow:   v.GetDuration("RADAR_DEDUP_WINDOW"),

		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   v.GetString("TELEGRAM_CHAT_ID"),
		WebhookURL:       v.GetString("WEBHOOK_URL"),
		KafkaBrokers:     v.GetString("KAFKA_BROKERS"),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),

		StagingMode: v.GetBool("STAGING_MODE"),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.FetchConcurrency <= 0:
		return fmt.Errorf("config: FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	case c.CandleCacheSize <= 0:
		return fmt.Errorf("config: CANDLE_CACHE_SIZE must be positive, got %d", c.CandleCacheSize)
	case c.ScanConcurrency <= 0:
		return fmt.Errorf("config: SCAN_CONCURRENCY must be positive, got %d", c.ScanConcurrency)
	case c.ScanTopN <= 0:
		return fmt.Errorf("config: SCAN_TOP_N must be positive, got %d", c.ScanTopN)
	case c.ProviderTimeout <= 0:
		return fmt.Errorf("config: PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	case c.AutotradeInterval <= 0 || c.AutotradeBackoff <= 0:
		return fmt.Errorf("config: AUTOTRADE_INTERVAL and AUTOTRADE_BACKOFF must be positive")
	}
	return nil
}

// ParseKafkaBrokers splits KafkaBrokers into host:port entries.
func (c *Config) ParseKafkaBrokers() []string {
	var out []string
	for _, p := range strings.Split(c.KafkaBrokers, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
