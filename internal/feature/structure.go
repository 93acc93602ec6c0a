package feature

import "signalengine/internal/model"

// Trend is the market structure label.
type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
	TrendNeutral Trend = "Neutral"
)

// Structure is the coarse market structure of a table.
type Structure struct {
	Trend      Trend
	Support    Value
	Resistance Value
}

// DetectStructure labels the trend from EMA50 vs EMA200 and takes support and
// resistance from the last StructureWindow rows. Shorter tables are Neutral
// with no levels.
func DetectStructure(table model.Table, fs *Set) Structure {
	st := Structure{Trend: TrendNeutral}
	if table.Len() < StructureWindow {
		return st
	}
	if fs != nil && fs.EMA50.OK && fs.EMA200.OK {
		if fs.EMA50.V > fs.EMA200.V {
			st.Trend = TrendBullish
		} else {
			st.Trend = TrendBearish
		}
	}
	window := table.Tail(StructureWindow)
	st.Resistance = Some(maxOf(window.Highs()))
	st.Support = Some(minOf(window.Lows()))
	return st
}
