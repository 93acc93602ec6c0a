package metrics

import "signalengine/internal/breaker"

// ObserveBreaker mirrors a breaker's transitions into the state gauge and
// trip counter. It chains any callback already installed.
func (m *Metrics) ObserveBreaker(cb *breaker.CircuitBreaker) {
	if m == nil || cb == nil {
		return
	}
	m.BreakerState.WithLabelValues(cb.Name()).Set(float64(breaker.StateClosed))
	prev := cb.OnStateChange
	cb.OnStateChange = func(name string, from, to breaker.State) {
		if prev != nil {
			prev(name, from, to)
		}
		m.BreakerState.WithLabelValues(name).Set(float64(to))
		if to == breaker.StateOpen {
			m.BreakerTrips.WithLabelValues(name).Inc()
		}
	}
}
