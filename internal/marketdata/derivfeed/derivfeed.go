// Package derivfeed adapts the Deriv ticks_history candle stream to the
// marketdata.Provider contract.
package derivfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalengine/internal/marketdata"
	"signalengine/internal/model"
	"signalengine/pkg/deriv"
)

const (
	DefaultCount       = 200
	DefaultGranularity = 300 // seconds
)

// CandleSource is the part of the Deriv client the feed needs.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, count, granularity int) ([]deriv.Candle, error)
}

// Provider implements marketdata.Provider over Deriv.
type Provider struct {
	src         CandleSource
	count       int
	granularity int
}

var _ marketdata.Provider = (*Provider)(nil)

// New creates the feed. count and granularity <= 0 take the defaults.
func New(src CandleSource, count, granularity int) *Provider {
	if count <= 0 {
		count = DefaultCount
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Provider{src: src, count: count, granularity: granularity}
}

func (p *Provider) Name() string { return "deriv" }

// Fetch pulls candles for a Deriv symbol (e.g. "R_100", "frxEURUSD").
// API errors (unknown symbol, auth) are returned as *deriv.APIError;
// transport failures wrap marketdata.ErrProviderUnavailable.
func (p *Provider) Fetch(ctx context.Context, symbol string) (model.Table, error) {
	candles, err := p.src.Candles(ctx, symbol, p.count, p.granularity)
	if err != nil {
		var apiErr *deriv.APIError
		if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("deriv: %w: %w", marketdata.ErrProviderUnavailable, err)
	}
	rows := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, model.Candle{
			Time:  time.Unix(c.Epoch, 0).UTC(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		})
	}
	return marketdata.Finish(p.Name(), symbol, rows)
}
