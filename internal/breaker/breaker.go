// Package breaker wraps venue catalog fetches in a circuit breaker so a
// misbehaving venue endpoint stops being hammered after repeated
// failures, instead of burning the full retry/backoff budget on every
// scheduled refresh.
package breaker

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker trips open after 3 consecutive failures, or after a failure
// rate above 5% over a window of at least 20 requests, then probes again
// once per Timeout.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// New builds a named breaker. name typically identifies the venue, e.g.
// "binance-catalog".
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn if the breaker is closed or half-open-and-probing;
// returns the breaker's own error (e.g. gobreaker.ErrOpenState) without
// calling fn if the breaker is open.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State exposes the breaker's current state for status reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
