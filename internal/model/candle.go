package model

import (
	"math"
	"sort"
	"time"
)

// Candle is one OHLCV bar. Prices are in the instrument's quote currency.
type Candle struct {
	Time   time.Time `json:"time"` // bucket start (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Table is an ordered candle sequence, ascending by Time, no duplicate timestamps.
// Once a table is handed to a cache it is shared read-only.
type Table []Candle

// Len returns the number of rows.
func (t Table) Len() int { return len(t) }

// Empty reports whether the table holds no rows.
func (t Table) Empty() bool { return len(t) == 0 }

// Last returns the most recent candle. Panics on an empty table.
func (t Table) Last() Candle { return t[len(t)-1] }

// Closes returns the close column.
func (t Table) Closes() []float64 {
	out := make([]float64, len(t))
	for i, c := range t {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high column.
func (t Table) Highs() []float64 {
	out := make([]float64, len(t))
	for i, c := range t {
		out[i] = c.High
	}
	return out
}

// Lows returns the low column.
func (t Table) Lows() []float64 {
	out := make([]float64, len(t))
	for i, c := range t {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volume column.
func (t Table) Volumes() []float64 {
	out := make([]float64, len(t))
	for i, c := range t {
		out[i] = c.Volume
	}
	return out
}

// Tail returns the last n rows (or the whole table when shorter).
// The result aliases t.
func (t Table) Tail(n int) Table {
	if n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// NormalizeTable applies the shared adapter contract: ascending time order,
// one row per timestamp (last wins), rows with a non-finite close dropped,
// missing open/high/low filled from the close and missing volume set to zero.
func NormalizeTable(rows []Candle) Table {
	if len(rows) == 0 {
		return Table{}
	}
	out := make(Table, 0, len(rows))
	for _, c := range rows {
		if !finite(c.Close) || c.Time.IsZero() {
			continue
		}
		if !finite(c.Open) || c.Open == 0 {
			c.Open = c.Close
		}
		if !finite(c.High) || c.High == 0 {
			c.High = math.Max(c.Open, c.Close)
		}
		if !finite(c.Low) || c.Low == 0 {
			c.Low = math.Min(c.Open, c.Close)
		}
		if !finite(c.Volume) || c.Volume < 0 {
			c.Volume = 0
		}
		c.Time = c.Time.UTC()
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	// Drop duplicate timestamps, keeping the later row.
	dedup := out[:0]
	for i, c := range out {
		if i+1 < len(out) && out[i+1].Time.Equal(c.Time) {
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
