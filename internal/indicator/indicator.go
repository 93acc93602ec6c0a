// Package indicator provides incremental technical indicators over candles.
//
// Every indicator is O(1) (or O(period) for window extremes) per update and
// reports Ready once its warm-up window is filled. Values read before Ready
// are meaningless and callers must treat them as absent.
package indicator

import "signalengine/internal/model"

// Indicator is implemented by every single-output indicator.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_50", "RSI_14").
	Name() string

	// Update feeds the next candle.
	Update(candle model.Candle)

	// Value returns the current value. Only meaningful when Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Series is a scalar-input moving statistic (SMA, EMA, SMMA). The MACD,
// Stochastic and feature code feed derived series through it.
type Series interface {
	Add(v float64)
	Value() float64
	Ready() bool
}
