package indicator

import (
	"math"
	"strconv"

	"signalengine/internal/model"
)

// ATR is Wilder's Average True Range. The first value is the mean of the
// first period true ranges (which start at the second candle).
type ATR struct {
	period    int
	smma      *SMMA
	prevClose float64
	seen      bool
}

// NewATR creates an ATR with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period, smma: NewSMMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + strconv.Itoa(a.period) }

func (a *ATR) Update(candle model.Candle) {
	if !a.seen {
		a.prevClose = candle.Close
		a.seen = true
		return
	}
	a.smma.Add(TrueRange(candle.High, candle.Low, a.prevClose))
	a.prevClose = candle.Close
}

func (a *ATR) Value() float64 { return a.smma.Value() }
func (a *ATR) Ready() bool    { return a.smma.Ready() }

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
