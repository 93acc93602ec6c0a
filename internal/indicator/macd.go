package indicator

import "signalengine/internal/model"

// MACD tracks the fast/slow EMA spread, its signal EMA and the histogram.
// The line is available once the slow EMA is ready; the signal once it has
// seen signalPeriod line values.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

// NewMACD creates a MACD(fast, slow, signal), typically 12/26/9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(candle model.Candle) { m.Add(candle.Close) }

// Add feeds the next close.
func (m *MACD) Add(price float64) {
	m.fast.Add(price)
	m.slow.Add(price)
	if !m.slow.Ready() || !m.fast.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Add(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }

// Signal returns the signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns line minus signal.
func (m *MACD) Histogram() float64 { return m.line - m.signal.Value() }

// LineReady reports whether the MACD line is available.
func (m *MACD) LineReady() bool { return m.slow.Ready() && m.fast.Ready() }

// Ready reports whether the signal line is available too.
func (m *MACD) Ready() bool { return m.signal.Ready() }
