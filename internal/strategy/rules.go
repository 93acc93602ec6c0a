package strategy

import (
	"signalengine/internal/feature"
	"signalengine/internal/model"
)

// Rule names and strengths.
const (
	NameTrendFollower  = "Trend Follower (EMA Cross)"
	NameMeanReversion  = "Mean Reversion (BB+RSI)"
	NameMomentum       = "Momentum Breakout (ADX+Vol)"
	NameSmartMoney     = "Smart Money (Structure BOS)"
	NameScalpingPulse  = "Scalping Pulse (Stoch+MACD)"
	strengthTrend      = 0.85
	strengthReversion  = 0.80
	strengthMomentum   = 0.90
	strengthSmartMoney = 0.80
	strengthScalping   = 0.75
)

// DefaultRules returns the five rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		TrendFollower,
		MeanReversion,
		MomentumBreakout,
		SmartMoney,
		ScalpingPulse,
	}
}

func buy(name string, strength float64) (Vote, bool) {
	return Vote{Name: name, Direction: model.DirectionBuy, Strength: strength}, true
}

func sell(name string, strength float64) (Vote, bool) {
	return Vote{Name: name, Direction: model.DirectionSell, Strength: strength}, true
}

// TrendFollower votes on an EMA9/EMA21 cross confirmed by ADX > 15.
func TrendFollower(fs *feature.Set) (Vote, bool) {
	if !fs.EMA9.OK || !fs.EMA21.OK || !fs.PrevEMA9.OK || !fs.PrevEMA21.OK || !fs.ADX.OK {
		return Vote{}, false
	}
	if fs.ADX.V <= 15 {
		return Vote{}, false
	}
	switch {
	case fs.PrevEMA9.V <= fs.PrevEMA21.V && fs.EMA9.V > fs.EMA21.V:
		return buy(NameTrendFollower, strengthTrend)
	case fs.PrevEMA9.V >= fs.PrevEMA21.V && fs.EMA9.V < fs.EMA21.V:
		return sell(NameTrendFollower, strengthTrend)
	}
	return Vote{}, false
}

// MeanReversion fades a close outside the Bollinger band when RSI agrees
// and the trend bias does not oppose.
func MeanReversion(fs *feature.Set) (Vote, bool) {
	if !fs.RSI.OK || !fs.BBLower.OK || !fs.BBUpper.OK {
		return Vote{}, false
	}
	bias := feature.StrictBias(fs)
	switch {
	case fs.Close < fs.BBLower.V && fs.RSI.V < 35 && bias != -1:
		return buy(NameMeanReversion, strengthReversion)
	case fs.Close > fs.BBUpper.V && fs.RSI.V > 65 && bias != 1:
		return sell(NameMeanReversion, strengthReversion)
	}
	return Vote{}, false
}

// MomentumBreakout follows the last bar when ADX > 20 and volume surges
// above 1.3x its 20-bar average.
func MomentumBreakout(fs *feature.Set) (Vote, bool) {
	if !fs.ADX.OK || !fs.VolumeAvg20.OK || !fs.PrevClose.OK {
		return Vote{}, false
	}
	if fs.ADX.V <= 20 || fs.Volume <= fs.VolumeAvg20.V*1.3 {
		return Vote{}, false
	}
	bias := feature.StrictBias(fs)
	switch {
	case fs.Close > fs.PrevClose.V && bias != -1:
		return buy(NameMomentum, strengthMomentum)
	case fs.Close < fs.PrevClose.V && bias != 1:
		return sell(NameMomentum, strengthMomentum)
	}
	return Vote{}, false
}

// SmartMoney votes on a break of the recent structure by more than 0.3%.
func SmartMoney(fs *feature.Set) (Vote, bool) {
	if !fs.BreakHigh.OK || !fs.BreakLow.OK {
		return Vote{}, false
	}
	bias := feature.StrictBias(fs)
	switch {
	case fs.Close > fs.BreakHigh.V*1.003 && bias != -1:
		return buy(NameSmartMoney, strengthSmartMoney)
	case fs.Close < fs.BreakLow.V*0.997 && bias != 1:
		return sell(NameSmartMoney, strengthSmartMoney)
	}
	return Vote{}, false
}

// ScalpingPulse combines a stochastic extreme with the MACD side.
func ScalpingPulse(fs *feature.Set) (Vote, bool) {
	if !fs.StochK.OK || !fs.MACD.OK || !fs.MACDSignal.OK {
		return Vote{}, false
	}
	bias := feature.StrictBias(fs)
	switch {
	case bias != -1 && fs.StochK.V < 35 && fs.MACD.V > fs.MACDSignal.V:
		return buy(NameScalpingPulse, strengthScalping)
	case bias != 1 && fs.StochK.V > 65 && fs.MACD.V < fs.MACDSignal.V:
		return sell(NameScalpingPulse, strengthScalping)
	}
	return Vote{}, false
}
