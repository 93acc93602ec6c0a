package indicator

import (
	"math"
	"strconv"

	"signalengine/internal/model"
)

// ADX computes Wilder's Average Directional Index with +DI and -DI.
//
// Smoothed TR/+DM/-DM start as plain sums of the first period-1 moves and
// then follow s = s - s/period + x, so the DIs are available after period
// moves and ADX (the Wilder average of DX seeded by the mean of the first
// period DX values) after 2*period-1 moves.
type ADX struct {
	period  int
	started bool
	moves   int // price moves seen (candles - 1)

	prevHigh, prevLow, prevClose float64

	sTR, sPlusDM, sMinusDM float64
	plusDI, minusDI        float64

	dxSum float64
	adx   float64
}

// NewADX creates an ADX with the given period (typically 14).
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return "ADX_" + strconv.Itoa(a.period) }

func (a *ADX) Update(candle model.Candle) {
	if !a.started {
		a.prevHigh, a.prevLow, a.prevClose = candle.High, candle.Low, candle.Close
		a.started = true
		return
	}
	a.moves++

	up := candle.High - a.prevHigh
	down := a.prevLow - candle.Low
	plusDM, minusDM := 0.0, 0.0
	if up > 0 && up > down {
		plusDM = up
	}
	if down > 0 && down > up {
		minusDM = down
	}
	tr := TrueRange(candle.High, candle.Low, a.prevClose)
	a.prevHigh, a.prevLow, a.prevClose = candle.High, candle.Low, candle.Close

	p := float64(a.period)
	if a.moves < a.period {
		a.sTR += tr
		a.sPlusDM += plusDM
		a.sMinusDM += minusDM
		return
	}
	a.sTR = a.sTR - a.sTR/p + tr
	a.sPlusDM = a.sPlusDM - a.sPlusDM/p + plusDM
	a.sMinusDM = a.sMinusDM - a.sMinusDM/p + minusDM

	a.plusDI, a.minusDI = 0, 0
	if a.sTR != 0 {
		a.plusDI = 100 * a.sPlusDM / a.sTR
		a.minusDI = 100 * a.sMinusDM / a.sTR
	}
	dx := 0.0
	if sum := a.plusDI + a.minusDI; sum != 0 {
		dx = 100 * math.Abs(a.plusDI-a.minusDI) / sum
	}

	switch {
	case a.moves < 2*a.period-1:
		a.dxSum += dx
	case a.moves == 2*a.period-1:
		a.dxSum += dx
		a.adx = a.dxSum / p
	default:
		a.adx = (a.adx*(p-1) + dx) / p
	}
}

// Value returns ADX.
func (a *ADX) Value() float64 { return a.adx }

// PlusDI returns +DI.
func (a *ADX) PlusDI() float64 { return a.plusDI }

// MinusDI returns -DI.
func (a *ADX) MinusDI() float64 { return a.minusDI }

// DIReady reports whether +DI/-DI are available.
func (a *ADX) DIReady() bool { return a.moves >= a.period }

// Ready reports whether ADX is available.
func (a *ADX) Ready() bool { return a.moves >= 2*a.period-1 }
