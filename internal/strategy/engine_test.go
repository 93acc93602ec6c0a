package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalengine/internal/candlegen"
	"signalengine/internal/feature"
	"signalengine/internal/model"
)

var some = feature.Some

func TestEvaluate_ShortTable(t *testing.T) {
	d := NewEngine().Evaluate(&feature.Set{Rows: 19})
	assert.Equal(t, NameNoneQualified, d.Name)
	assert.Equal(t, StateNeutral, d.State)
	assert.Equal(t, model.DirectionHold, d.Direction)

	assert.Equal(t, StateNeutral, NewEngine().Evaluate(nil).State)
}

func TestEvaluate_NoVotes(t *testing.T) {
	d := NewEngine().Evaluate(&feature.Set{Rows: 50, Close: 100})
	assert.Equal(t, NameStable, d.Name)
	assert.Equal(t, StateNeutral, d.State)
}

func TestEvaluate_Conflict(t *testing.T) {
	alwaysBuy := func(*feature.Set) (Vote, bool) { return buy("a", 0.5) }
	alwaysSell := func(*feature.Set) (Vote, bool) { return sell("b", 0.9) }

	d := NewEngine(alwaysBuy, alwaysSell).Evaluate(&feature.Set{Rows: 50})
	assert.Equal(t, StateConflict, d.State)
	assert.Equal(t, NameConflict, d.Name)
	assert.Equal(t, model.DirectionHold, d.Direction)
	assert.Len(t, d.Votes, 2)
}

func TestEvaluate_ConflictFromRealRules(t *testing.T) {
	// Close breaks above structure (Smart Money BUY) while stochastic is high
	// and MACD below signal (Scalping SELL), no EMA bias.
	fs := &feature.Set{
		Rows: 60, Close: 105,
		BreakHigh: some(100), BreakLow: some(90),
		StochK: some(80), MACD: some(-1), MACDSignal: some(0),
	}
	d := NewEngine().Evaluate(fs)
	assert.Equal(t, StateConflict, d.State)
}

func TestResolve_StrongestWinsTiesByOrder(t *testing.T) {
	d := Resolve([]Vote{
		{Name: "first", Direction: model.DirectionSell, Strength: 0.8},
		{Name: "second", Direction: model.DirectionSell, Strength: 0.9},
		{Name: "third", Direction: model.DirectionSell, Strength: 0.9},
	})
	assert.Equal(t, StateSelected, d.State)
	assert.Equal(t, "second", d.Name)
	assert.Equal(t, model.DirectionSell, d.Direction)
}

func TestTrendFollower(t *testing.T) {
	fs := &feature.Set{
		PrevEMA9: some(9.9), PrevEMA21: some(10),
		EMA9: some(10.1), EMA21: some(10), ADX: some(16),
	}
	v, ok := TrendFollower(fs)
	require.True(t, ok)
	assert.Equal(t, model.DirectionBuy, v.Direction)
	assert.Equal(t, 0.85, v.Strength)

	fs.ADX = some(15)
	_, ok = TrendFollower(fs)
	assert.False(t, ok, "ADX must exceed 15")

	fs = &feature.Set{
		PrevEMA9: some(10), PrevEMA21: some(10),
		EMA9: some(9.9), EMA21: some(10), ADX: some(30),
	}
	v, ok = TrendFollower(fs)
	require.True(t, ok)
	assert.Equal(t, model.DirectionSell, v.Direction)

	_, ok = TrendFollower(&feature.Set{EMA9: some(1), EMA21: some(2), ADX: some(30)})
	assert.False(t, ok, "absent previous EMAs abstain")
}

func TestMomentumBreakout(t *testing.T) {
	fs := &feature.Set{
		Close: 101, PrevClose: some(100), ADX: some(25),
		Volume: 140, VolumeAvg20: some(100),
	}
	v, ok := MomentumBreakout(fs)
	require.True(t, ok)
	assert.Equal(t, model.DirectionBuy, v.Direction)
	assert.Equal(t, 0.9, v.Strength)

	fs.Volume = 130
	_, ok = MomentumBreakout(fs)
	assert.False(t, ok, "volume must exceed 1.3x average")

	// bearish bias blocks the BUY
	fs = &feature.Set{
		Close: 101, PrevClose: some(100), ADX: some(25),
		Volume: 200, VolumeAvg20: some(100),
		EMA50: some(102), EMA200: some(103),
	}
	_, ok = MomentumBreakout(fs)
	assert.False(t, ok)
}

func TestRules_BullishBiasSuppressesSells(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		ema200 := 50 + rng.Float64()*100
		ema50 := ema200 * (1 + rng.Float64()*0.2 + 1e-6)
		px := ema50 * (1 + rng.Float64()*0.2 + 1e-6)
		macd := rng.NormFloat64()
		fs := &feature.Set{
			Rows:       200,
			Close:      px,
			EMA50:      some(ema50),
			EMA200:     some(ema200),
			RSI:        some(rng.Float64() * 100),
			BBUpper:    some(px * (1 - rng.Float64()*0.1)),
			BBLower:    some(px * (1 - rng.Float64()*0.2)),
			StochK:     some(rng.Float64() * 100),
			MACD:       some(macd),
			MACDSignal: some(macd + rng.NormFloat64()),
		}
		require.Equal(t, 1, feature.StrictBias(fs))

		for _, rule := range []Rule{MeanReversion, ScalpingPulse} {
			if v, ok := rule(fs); ok {
				assert.NotEqual(t, model.DirectionSell, v.Direction, "rule %s sold in a bull stack", v.Name)
			}
		}
	}
}

func TestEvaluate_RisingTable(t *testing.T) {
	fs, err := feature.Compute(candlegen.Rising(200))
	require.NoError(t, err)

	d := NewEngine().Evaluate(fs)
	assert.NotEqual(t, StateConflict, d.State)
	assert.NotEqual(t, model.DirectionSell, d.Direction)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "selected", StateSelected.String())
	assert.Equal(t, "conflict", StateConflict.String())
	assert.Equal(t, "neutral", StateNeutral.String())
}
