// Package marketdata defines the candle provider contract shared by the
// upstream adapters and the collector.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"signalengine/internal/model"
)

var (
	// ErrProviderUnavailable covers timeouts, connection failures and
	// non-success HTTP statuses. The collector falls back to the next step.
	ErrProviderUnavailable = errors.New("marketdata: provider unavailable")

	// ErrEmpty means the upstream answered but had no usable candles.
	ErrEmpty = errors.New("marketdata: no candles")
)

// Provider fetches a candle table for an upstream-native symbol.
// Implementations are safe for concurrent use and return a normalized table.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (model.Table, error)
}

// UserAgent is sent by the HTTP adapters; some upstreams reject Go's default.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GetJSON performs a GET and decodes a JSON body into out. Transport errors
// and statuses >= 400 are wrapped with ErrProviderUnavailable; the error
// body (truncated) is included for diagnosis.
func GetJSON(ctx context.Context, client *http.Client, name, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	res, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w: %w", name, ErrProviderUnavailable, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %v", name, ErrProviderUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "provider", name, "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s http %d: %w: %s", name, res.StatusCode, ErrProviderUnavailable, body)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", name, err)
	}
	return nil
}

// Finish normalizes rows and maps an empty result to ErrEmpty.
func Finish(name, symbol string, rows []model.Candle) (model.Table, error) {
	table := model.NormalizeTable(rows)
	if table.Empty() {
		return nil, fmt.Errorf("%s %s: %w", name, symbol, ErrEmpty)
	}
	return table, nil
}
