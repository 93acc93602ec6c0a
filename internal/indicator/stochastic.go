package indicator

import "signalengine/internal/model"

// Stochastic is the fast stochastic oscillator: raw %K over kPeriod bars
// and %D as an SMA(dPeriod) of raw %K. A zero high-low range yields a %K
// of 0.
type Stochastic struct {
	kPeriod int
	highs   []float64
	lows    []float64
	idx     int
	count   int

	k      float64
	kReady bool
	d      *SMA
}

// NewStochastic creates Stochastic(kPeriod, dPeriod), typically 14/3.
func NewStochastic(kPeriod, dPeriod int) *Stochastic {
	return &Stochastic{
		kPeriod: kPeriod,
		highs:   make([]float64, kPeriod),
		lows:    make([]float64, kPeriod),
		d:       NewSMA(dPeriod),
	}
}

func (s *Stochastic) Name() string { return "STOCH" }

func (s *Stochastic) Update(candle model.Candle) {
	s.highs[s.idx] = candle.High
	s.lows[s.idx] = candle.Low
	s.idx = (s.idx + 1) % s.kPeriod
	s.count++
	if s.count < s.kPeriod {
		return
	}

	hh, ll := s.highs[0], s.lows[0]
	for i := 1; i < s.kPeriod; i++ {
		if s.highs[i] > hh {
			hh = s.highs[i]
		}
		if s.lows[i] < ll {
			ll = s.lows[i]
		}
	}
	s.k = 0
	if diff := hh - ll; diff != 0 {
		s.k = (candle.Close - ll) / diff * 100
	}
	s.kReady = true
	s.d.Add(s.k)
}

// Value returns %K.
func (s *Stochastic) Value() float64 { return s.k }

// K returns the raw %K of the latest bar.
func (s *Stochastic) K() float64 { return s.k }

// D returns %D.
func (s *Stochastic) D() float64 { return s.d.Value() }

// KReady reports whether %K is available.
func (s *Stochastic) KReady() bool { return s.kReady }

// Ready reports whether %D is available.
func (s *Stochastic) Ready() bool { return s.d.Ready() }
