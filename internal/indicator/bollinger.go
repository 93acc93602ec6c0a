package indicator

import (
	"math"

	"signalengine/internal/model"
)

// Bollinger computes the SMA middle band and bands at k population
// standard deviations.
type Bollinger struct {
	sma *SMA
	k   float64
}

// NewBollinger creates Bollinger Bands(period, k), typically 20/2.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{sma: NewSMA(period), k: k}
}

func (b *Bollinger) Name() string { return "BB" }

func (b *Bollinger) Update(candle model.Candle) { b.sma.Add(candle.Close) }

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }

// Ready reports whether the window is full.
func (b *Bollinger) Ready() bool { return b.sma.Ready() }

// Bands returns (upper, middle, lower).
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	middle = b.sma.Value()
	var ss float64
	window := b.sma.Window()
	for _, v := range window {
		d := v - middle
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(window)))
	return middle + b.k*sd, middle, middle - b.k*sd
}
