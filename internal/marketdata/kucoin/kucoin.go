// Package kucoin reads candles from the KuCoin spot REST API.
package kucoin

import (
	"context"
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
	DefaultBaseURL = "https://api.kucoin.com"
	DefaultType    = "15min"
	DefaultLimit   = 50
	codeOK         = "200000"
)

// Config holds the candles settings.
type Config struct {
	BaseURL string
	Type    string // KuCoin interval name, e.g. "15min"
	Limit   int    // most recent rows kept
}

// Provider implements marketdata.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

var _ marketdata.Provider = (*Provider)(nil)

// New creates a KuCoin provider. A nil client gets a 10s timeout client.
func New(cfg Config, client *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Type == "" {
		cfg.Type = DefaultType
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "kucoin" }

// Symbol converts "BTC/USDT" (or "BTCUSDT") to "BTC-USDT".
func Symbol(s string) string {
	s = strings.ToUpper(s)
	if strings.Contains(s, "/") {
		return strings.ReplaceAll(s, "/", "-")
	}
	if !strings.Contains(s, "-") && strings.HasSuffix(s, "USDT") && len(s) > 4 {
		return s[:len(s)-4] + "-USDT"
	}
	return s
}

type candlesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// Fetch pulls candles. Rows are [time, open, close, high, low, volume,
// turnover], newest first, all as strings.
func (p *Provider) Fetch(ctx context.Context, symbol string) (model.Table, error) {
	q := url.Values{}
	q.Set("type", p.cfg.Type)
	q.Set("symbol", Symbol(symbol))
	u := fmt.Sprintf("%s/api/v1/market/candles?%s", strings.TrimRight(p.cfg.BaseURL, "/"), q.Encode())

	var body candlesResponse
	if err := marketdata.GetJSON(ctx, p.client, p.Name(), u, &body); err != nil {
		return nil, err
	}
	if body.Code != codeOK {
		return nil, fmt.Errorf("kucoin %s: code %s: %s", symbol, body.Code, body.Msg)
	}

	rows := body.Data
	if len(rows) > p.cfg.Limit {
		rows = rows[:p.cfg.Limit]
	}
	out := make([]model.Candle, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("kucoin %s row %d: short row", symbol, i)
		}
		var f [6]float64
		for j := range f {
			v, err := strconv.ParseFloat(r[j], 64)
			if err != nil {
				return nil, fmt.Errorf("kucoin %s row %d: parse %q: %w", symbol, i, r[j], err)
			}
			f[j] = v
		}
		out = append(out, model.Candle{
			Time:   time.Unix(int64(f[0]), 0).UTC(),
			Open:   f[1],
			Close:  f[2],
			High:   f[3],
			Low:    f[4],
			Volume: f[5],
		})
	}
	return marketdata.Finish(p.Name(), symbol, out)
}
