// Package signal fuses the technical score, sentiment, volume, momentum and
// the strategy decision into one directional signal with confidence,
// expiry, target and stop.
package signal

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"signalengine/internal/feature"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/strategy"
)

// Fusion weights.
const (
	WeightTechnical = 0.40
	WeightSentiment = 0.15
	WeightVolume    = 0.20
	WeightMomentum  = 0.25
)

const (
	minConfidence = 5.0
	maxConfidence = 99.0
	entryLead     = 5 * time.Minute
	tpATR         = 2.5
	slATR         = 1.2
	fallbackRange = 0.02 // of entry, used when ATR is absent
)

// Options tunes one generation.
type Options struct {
	// Fast skips the sentiment lookup (bulk scans).
	Fast bool
	// Duration overrides the expiry, e.g. "5m", "1h", "30s".
	Duration string
}

// Sentiment scores news for a query in [-1, 1].
type Sentiment interface {
	Score(ctx context.Context, query string) float64
}

// Generator produces signals. Safe for concurrent use.
type Generator struct {
	engine    *strategy.Engine
	sentiment Sentiment
	now       func() time.Time
	log       *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// New creates a generator. A nil engine uses the default rule set; a nil
// sentiment source always scores 0.
func New(engine *strategy.Engine, sentiment Sentiment, log *slog.Logger) *Generator {
	if engine == nil {
		engine = strategy.NewEngine()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		engine:    engine,
		sentiment: sentiment,
		now:       time.Now,
		log:       log.With("component", "signal"),
	}
}

// WithClock replaces the time source. Intended for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate evaluates one table. It returns (nil, nil) when there is nothing
// to report: an empty table or a strategy conflict. The error is only
// non-nil when ctx is done.
func (g *Generator) Generate(ctx context.Context, asset string, table model.Table, opts Options) (*model.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, nil
	}

	fs, err := feature.Compute(table)
	var (
		ta       float64
		decision strategy.Decision
		st       feature.Structure
	)
	if err != nil {
		g.log.Warn("feature compute failed, using price-only score", "asset", asset, "error", err)
		ta = feature.EmergencyScore(table)
		decision = g.engine.Evaluate(nil)
		st = feature.DetectStructure(table, nil)
	} else {
		ta = feature.Score(fs)
		decision = g.engine.Evaluate(fs)
		st = fs.Structure
	}

	if decision.State == strategy.StateConflict {
		g.log.Debug("strategy conflict, no signal", "asset", asset)
		return nil, nil
	}

	var sent float64
	if !opts.Fast && g.sentiment != nil {
		sent = g.sentiment.Score(ctx, asset)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	vol := VolumeScore(table)
	mom := MomentumScore(table)
	composite := WeightTechnical*ta + WeightSentiment*sent + WeightVolume*vol + WeightMomentum*mom

	direction := decision.Direction
	if decision.State != strategy.StateSelected {
		direction = model.DirectionBuy
		if composite < 0 {
			direction = model.DirectionSell
		}
	}
	confidence := Confidence(direction, composite)

	var atr, atrMean feature.Value
	if fs != nil {
		atr, atrMean = fs.ATR, fs.ATRMean
	}
	volatility := VolatilityLevel(atr, atrMean)

	expiry, minutes := SmartExpiry(confidence, volatility)
	if opts.Duration != "" {
		expiry, minutes = opts.Duration, ParseDuration(opts.Duration)
	}

	entry := table.Last().Close
	tp, sl := Targets(entry, direction, atr)
	now := g.now().UTC()

	sig := &model.Signal{
		ID:            uuid.NewString(),
		Asset:         asset,
		Class:         model.DetectClass(asset),
		Direction:     direction,
		Confidence:    confidence,
		Entry:         entry,
		TakeProfit:    tp,
		StopLoss:      sl,
		Expiry:        expiry,
		ExpiryMinutes: minutes,
		EntryTime:     now.Add(entryLead),
		MarketType:    MarketType(asset),
		TradeType:     TradeType(minutes),
		Strategy:      decision.Name,
		Trend:         TrendLabel(ta),
		Support:       st.Support.V,
		Resistance:    st.Resistance.V,
		Volatility:    volatility,
		Rationale:     Rationale(ta, st.Trend, sent, vol, mom, volatility),
		CreatedAt:     now,
	}
	if g.Metrics != nil {
		g.Metrics.SignalsTotal.WithLabelValues(string(direction)).Inc()
	}
	return sig, nil
}

// VolumeScore compares the mean of the last 5 volumes to the mean of all
// volumes: above 1.5x scores ±0.8, above 1.2x ±0.4, signed by the last
// close change.
func VolumeScore(table model.Table) float64 {
	n := table.Len()
	if n < 2 {
		return 0
	}
	avg := mean(table.Volumes())
	recent := mean(table.Tail(5).Volumes())
	sign := -1.0
	if table[n-1].Close > table[n-2].Close {
		sign = 1
	}
	switch {
	case recent > avg*1.5:
		return 0.8 * sign
	case recent > avg*1.2:
		return 0.4 * sign
	}
	return 0
}

// MomentumScore is the 10-bar rate of change scaled by 20, clamped to ±1.
func MomentumScore(table model.Table) float64 {
	n := table.Len()
	if n < 10 {
		return 0
	}
	base := table[n-10].Close
	if base == 0 {
		return 0
	}
	return clamp((table[n-1].Close-base)/base*20, -1, 1)
}

// Confidence maps the composite to 0-100. Agreement between direction and
// the composite sign earns the 65 baseline.
func Confidence(direction model.Direction, composite float64) float64 {
	agrees := (direction == model.DirectionBuy && composite > 0) ||
		(direction == model.DirectionSell && composite < 0)
	var c float64
	if agrees {
		c = 65 + 35*math.Abs(composite)
	} else {
		c = 60 * math.Abs(composite)
	}
	c = clamp(c, minConfidence, maxConfidence)
	return math.Round(c*100) / 100
}

// VolatilityLevel buckets the last ATR against the mean of the ATR series.
func VolatilityLevel(atr, atrMean feature.Value) model.Volatility {
	if !atr.OK || !atrMean.OK {
		return model.VolatilityNormal
	}
	switch {
	case atr.V > atrMean.V*1.3:
		return model.VolatilityHigh
	case atr.V < atrMean.V*0.7:
		return model.VolatilityLow
	}
	return model.VolatilityNormal
}

// Targets returns take-profit and stop-loss around entry.
func Targets(entry float64, direction model.Direction, atr feature.Value) (tp, sl float64) {
	r := entry * fallbackRange
	if atr.OK {
		r = atr.V
	}
	switch direction {
	case model.DirectionBuy:
		return entry + tpATR*r, entry - slATR*r
	case model.DirectionSell:
		return entry - tpATR*r, entry + slATR*r
	}
	return entry, entry
}

// MarketType labels OTC instruments.
func MarketType(asset string) string {
	if containsFold(asset, "OTC") {
		return "OTC Proprietary"
	}
	return "Real Global Market"
}

// TradeType labels short expiries as binary options.
func TradeType(expiryMinutes int) string {
	if expiryMinutes < 60 {
		return "Binary Options / Digital"
	}
	return "Spot Forex / CFD"
}

// TrendLabel reports a strong trend when |technical score| > 0.5.
func TrendLabel(ta float64) string {
	if math.Abs(ta) > 0.5 {
		return "Strong Trend"
	}
	return "Stable Market"
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
