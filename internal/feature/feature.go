// Package feature derives the technical feature set of a candle table and
// reduces it to a directional technical score.
package feature

import (
	"errors"
	"fmt"
	"math"

	"signalengine/internal/indicator"
	"signalengine/internal/model"
)

// ErrMalformed is returned when a table cannot be used for feature extraction.
var ErrMalformed = errors.New("feature: malformed candle table")

// Indicator parameters.
const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BBPeriod        = 20
	BBWidth         = 2.0
	StochPeriod     = 14
	StochD          = 3
	ADXPeriod       = 14
	ATRPeriod       = 14
	VolumeWindow    = 20
	BreakLookback   = 30
	StructureWindow = 20
)

// Value is an optional indicator reading. OK is false while the indicator
// is still warming up, which is different from a neutral reading.
type Value struct {
	V  float64
	OK bool
}

// Some wraps a present value.
func Some(v float64) Value { return Value{V: v, OK: true} }

// None is the absent value.
var None = Value{}

// Set is the read-only feature record computed from one table.
type Set struct {
	Rows int

	Close     float64
	PrevClose Value

	RSI        Value
	MACD       Value
	MACDSignal Value
	MACDHist   Value

	BBUpper  Value
	BBMiddle Value
	BBLower  Value

	EMA9      Value
	EMA21     Value
	EMA50     Value
	EMA200    Value
	PrevEMA9  Value
	PrevEMA21 Value

	StochK Value
	StochD Value

	ADX     Value
	PlusDI  Value
	MinusDI Value

	ATR     Value
	ATRMean Value

	Volume      float64
	VolumeAvg20 Value

	// BreakHigh/BreakLow are the extremes of the last BreakLookback rows
	// excluding the most recent one.
	BreakHigh Value
	BreakLow  Value

	Structure Structure
}

// Compute runs every indicator over the table and returns the feature set
// as of the last row. It is pure and deterministic.
func Compute(table model.Table) (*Set, error) {
	if err := validate(table); err != nil {
		return nil, err
	}

	var (
		rsi    = indicator.NewRSI(RSIPeriod)
		macd   = indicator.NewMACD(MACDFast, MACDSlow, MACDSignal)
		bb     = indicator.NewBollinger(BBPeriod, BBWidth)
		ema9   = indicator.NewEMA(9)
		ema21  = indicator.NewEMA(21)
		ema50  = indicator.NewEMA(50)
		ema200 = indicator.NewEMA(200)
		stoch  = indicator.NewStochastic(StochPeriod, StochD)
		adx    = indicator.NewADX(ADXPeriod)
		atr    = indicator.NewATR(ATRPeriod)
	)

	fs := &Set{Rows: len(table)}
	var atrSum float64
	var atrCount int

	for i, c := range table {
		if i == len(table)-1 {
			fs.PrevEMA9 = valueOf(ema9)
			fs.PrevEMA21 = valueOf(ema21)
		}
		rsi.Update(c)
		macd.Update(c)
		bb.Update(c)
		ema9.Update(c)
		ema21.Update(c)
		ema50.Update(c)
		ema200.Update(c)
		stoch.Update(c)
		adx.Update(c)
		atr.Update(c)
		if atr.Ready() {
			atrSum += atr.Value()
			atrCount++
		}
	}

	last := table.Last()
	fs.Close = last.Close
	fs.Volume = last.Volume
	if n := len(table); n >= 2 {
		fs.PrevClose = Some(table[n-2].Close)
	}

	fs.RSI = valueOf(rsi)
	if macd.LineReady() {
		fs.MACD = Some(macd.Value())
	}
	if macd.Ready() {
		fs.MACDSignal = Some(macd.Signal())
		fs.MACDHist = Some(macd.Histogram())
	}
	if bb.Ready() {
		upper, middle, lower := bb.Bands()
		fs.BBUpper, fs.BBMiddle, fs.BBLower = Some(upper), Some(middle), Some(lower)
	}
	fs.EMA9 = valueOf(ema9)
	fs.EMA21 = valueOf(ema21)
	fs.EMA50 = valueOf(ema50)
	fs.EMA200 = valueOf(ema200)
	if stoch.KReady() {
		fs.StochK = Some(stoch.K())
	}
	if stoch.Ready() {
		fs.StochD = Some(stoch.D())
	}
	if adx.DIReady() {
		fs.PlusDI = Some(adx.PlusDI())
		fs.MinusDI = Some(adx.MinusDI())
	}
	fs.ADX = valueOf(adx)
	fs.ATR = valueOf(atr)
	// Warm-up rows count as zero ATR in the mean.
	if atrCount > 0 {
		fs.ATRMean = Some(atrSum / float64(len(table)))
	}

	fs.VolumeAvg20 = Some(mean(table.Tail(VolumeWindow).Volumes()))
	if n := len(table); n >= 2 {
		window := table[:n-1].Tail(BreakLookback - 1)
		fs.BreakHigh = Some(maxOf(window.Highs()))
		fs.BreakLow = Some(minOf(window.Lows()))
	}

	fs.Structure = DetectStructure(table, fs)
	return fs, nil
}

func validate(table model.Table) error {
	if table.Empty() {
		return fmt.Errorf("%w: empty table", ErrMalformed)
	}
	for i, c := range table {
		if !finite(c.Open) || !finite(c.High) || !finite(c.Low) || !finite(c.Close) || !finite(c.Volume) {
			return fmt.Errorf("%w: non-finite value at row %d", ErrMalformed, i)
		}
		if i > 0 && !c.Time.After(table[i-1].Time) {
			return fmt.Errorf("%w: non-increasing timestamp at row %d", ErrMalformed, i)
		}
	}
	return nil
}

func valueOf(ind indicator.Indicator) Value {
	if !ind.Ready() {
		return None
	}
	return Some(ind.Value())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}
