// Package binance reads klines from the Binance spot REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signalengine/internal/marketdata"
	"signalengine/internal/model"
)

const (
	DefaultBaseURL  = "https://api.binance.com"
	DefaultInterval = "15m"
	DefaultLimit    = 50
)

// Config holds the klines settings.
type Config struct {
	BaseURL  string
	Interval string
	Limit    int
}

// Provider implements marketdata.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

var _ marketdata.Provider = (*Provider)(nil)

// New creates a Binance provider. A nil client gets a 10s timeout client.
func New(cfg Config, client *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "binance" }

// Symbol converts "BTC/USDT" to the exchange form "BTCUSDT".
func Symbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "/", ""))
}

// Fetch pulls klines; each row is
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func (p *Provider) Fetch(ctx context.Context, symbol string) (model.Table, error) {
	q := url.Values{}
	q.Set("symbol", Symbol(symbol))
	q.Set("interval", p.cfg.Interval)
	q.Set("limit", strconv.Itoa(p.cfg.Limit))
	u := fmt.Sprintf("%s/api/v3/klines?%s", strings.TrimRight(p.cfg.BaseURL, "/"), q.Encode())

	var rows [][]json.RawMessage
	if err := marketdata.GetJSON(ctx, p.client, p.Name(), u, &rows); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(rows))
	for i, r := range rows {
		c, err := parseKline(r)
		if err != nil {
			return nil, fmt.Errorf("binance %s row %d: %w", symbol, i, err)
		}
		out = append(out, c)
	}
	return marketdata.Finish(p.Name(), symbol, out)
}

func parseKline(r []json.RawMessage) (model.Candle, error) {
	if len(r) < 6 {
		return model.Candle{}, fmt.Errorf("short kline (%d fields)", len(r))
	}
	var openTime int64
	if err := json.Unmarshal(r[0], &openTime); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := number(r[i+1])
		if err != nil {
			return model.Candle{}, err
		}
		vals[i] = v
	}
	return model.Candle{
		Time:   time.UnixMilli(openTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// number accepts both quoted and bare JSON numbers.
func number(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse %s: %w", raw, err)
	}
	return f, nil
}
