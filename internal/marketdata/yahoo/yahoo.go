// Package yahoo reads OHLCV bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signalengine/internal/marketdata"
	"signalengine/internal/model"
)

const (
	DefaultBaseURL  = "https://query1.finance.yahoo.com"
	DefaultInterval = "15m"
	DefaultRange    = "2d"
)

// Config holds the chart API settings.
type Config struct {
	BaseURL  string
	Interval string
	Range    string
}

// Provider implements marketdata.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

var _ marketdata.Provider = (*Provider)(nil)

// New creates a Yahoo provider. A nil client gets a 10s timeout client.
func New(cfg Config, client *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch pulls the chart for a Yahoo ticker (e.g. "EURUSD=X", "GC=F", "BTC-USD").
func (p *Provider) Fetch(ctx context.Context, symbol string) (model.Table, error) {
	q := url.Values{}
	q.Set("interval", p.cfg.Interval)
	q.Set("range", p.cfg.Range)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(symbol), q.Encode())

	var body chartResponse
	if err := marketdata.GetJSON(ctx, p.client, p.Name(), u, &body); err != nil {
		return nil, err
	}
	if e := body.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, marketdata.ErrEmpty)
	}

	res := body.Chart.Result[0]
	quote := res.Indicators.Quote[0]
	rows := make([]model.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue
		}
		rows = append(rows, model.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   deref(at(quote.Open, i)),
			High:   deref(at(quote.High, i)),
			Low:    deref(at(quote.Low, i)),
			Close:  *c,
			Volume: deref(at(quote.Volume, i)),
		})
	}
	return marketdata.Finish(p.Name(), symbol, rows)
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
