package feature

import (
	"math"

	"signalengine/internal/model"
)

// Bias is the EMA ordering lean used by the technical score: +1 for
// close > EMA50 > EMA200, -1 for the mirror, 0 otherwise. Without EMA200 it
// falls back to +/-0.5 from close vs EMA50.
func Bias(fs *Set) float64 {
	if fs == nil || !fs.EMA50.OK {
		return 0
	}
	if !fs.EMA200.OK {
		if fs.Close > fs.EMA50.V {
			return 0.5
		}
		return -0.5
	}
	return float64(StrictBias(fs))
}

// StrictBias is +1 for close > EMA50 > EMA200, -1 for close < EMA50 < EMA200
// and 0 otherwise, including when either average is absent.
func StrictBias(fs *Set) int {
	if fs == nil || !fs.EMA50.OK || !fs.EMA200.OK {
		return 0
	}
	switch {
	case fs.Close > fs.EMA50.V && fs.EMA50.V > fs.EMA200.V:
		return 1
	case fs.Close < fs.EMA50.V && fs.EMA50.V < fs.EMA200.V:
		return -1
	}
	return 0
}

// Score reduces a feature set to a technical score in [-1, 1]. Components
// aligned with the bias are weighted up and counter-trend results are capped.
func Score(fs *Set) float64 {
	if fs == nil || fs.Rows < 2 {
		return 0
	}
	bias := Bias(fs)
	var score, weight float64

	if fs.RSI.OK {
		rsi := fs.RSI.V
		delta := (rsi - 50) / 20
		if (bias == 1 && delta > 0) || (bias == -1 && delta < 0) {
			score += delta * 2.5
		} else {
			score += delta * 1.5
		}
		weight += 2

		// trend-aligned re-entry
		if bias == 1 && rsi < 40 {
			score += 1.5
			weight++
		} else if bias == -1 && rsi > 60 {
			score -= 1.5
			weight++
		}
	}

	if fs.MACD.OK && fs.MACDSignal.OK {
		m, s := fs.MACD.V, fs.MACDSignal.V
		cross := (m - s) / (math.Abs(m) + math.Abs(s) + 1e-4)
		if (bias == 1 && cross > 0) || (bias == -1 && cross < 0) {
			score += cross * 2
		} else {
			score += cross * 0.5
		}
		weight += 2
	}

	if fs.EMA50.OK && fs.EMA50.V != 0 {
		dist := (fs.Close - fs.EMA50.V) / fs.EMA50.V * 100
		score += clamp(dist, -2, 2)
		weight += 2
	}

	if fs.ADX.OK {
		if fs.ADX.V > 25 {
			score += (fs.PlusDI.V - fs.MinusDI.V) / 50 * 1.5
			weight += 1.5
		} else {
			weight++
		}
	}

	if fs.StochK.OK {
		if bias == 1 && fs.StochK.V < 30 {
			score += 1.5
			weight += 1.5
		} else if bias == -1 && fs.StochK.V > 70 {
			score -= 1.5
			weight += 1.5
		}
	}

	if weight == 0 {
		return 0
	}
	final := score / weight
	if bias == 1 && final < -0.2 {
		final = -0.1
	}
	if bias == -1 && final > 0.2 {
		final = 0.1
	}
	return clamp(final, -1, 1)
}

// EmergencyScore is the price-only fallback used when Compute fails:
// +0.1 when the last close is above the mean of the last five closes,
// -0.1 otherwise, 0 for an empty table.
func EmergencyScore(table model.Table) float64 {
	if table.Empty() {
		return 0
	}
	var sum float64
	var n int
	for _, c := range table.Tail(5) {
		if finite(c.Close) {
			sum += c.Close
			n++
		}
	}
	last := table.Last().Close
	if n > 0 && finite(last) && last > sum/float64(n) {
		return 0.1
	}
	return -0.1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
