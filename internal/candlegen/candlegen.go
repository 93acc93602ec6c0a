// Package candlegen produces deterministic synthetic candle tables for the
// staging feed and for tests.
package candlegen

import (
	"math"
	"math/rand"
	"time"

	"signalengine/internal/model"
)

// Epoch is the first bucket start of every generated table.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Trend returns n candles whose close moves by step per bar from start and
// whose volume grows by volStep per bar from 1000. Each bar spans half a
// step above and below its open/close.
func Trend(n int, start, step, volStep float64, interval time.Duration) model.Table {
	out := make(model.Table, n)
	price := start
	for i := range out {
		open := price
		price += step
		wick := math.Abs(step) / 2
		out[i] = model.Candle{
			Time:   Epoch.Add(time.Duration(i) * interval),
			Open:   open,
			High:   math.Max(open, price) + wick,
			Low:    math.Min(open, price) - wick,
			Close:  price,
			Volume: 1000 + float64(i)*volStep,
		}
	}
	return out
}

// Rising is a strictly rising 15-minute table with rising volume.
func Rising(n int) model.Table { return Trend(n, 100, 1, 10, 15*time.Minute) }

// Falling is a strictly falling 15-minute table with rising volume.
func Falling(n int) model.Table { return Trend(n, 100+float64(n), -1, 10, 15*time.Minute) }

// Walk is a seeded Gaussian random walk around start with the given
// per-bar volatility.
func Walk(n int, seed int64, start, vol float64, interval time.Duration) model.Table {
	rng := rand.New(rand.NewSource(seed))
	return WalkFrom(rng, n, start, vol, Epoch, interval)
}

// WalkFrom continues a random walk from an existing generator, starting at
// the given bucket time.
func WalkFrom(rng *rand.Rand, n int, start, vol float64, from time.Time, interval time.Duration) model.Table {
	out := make(model.Table, n)
	price := start
	for i := range out {
		open := price
		price = math.Max(price+rng.NormFloat64()*vol, vol)
		out[i] = model.Candle{
			Time:   from.Add(time.Duration(i) * interval),
			Open:   open,
			High:   math.Max(open, price) + rng.Float64()*vol,
			Low:    math.Max(math.Min(open, price)-rng.Float64()*vol, vol/2),
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
		}
	}
	return out
}
