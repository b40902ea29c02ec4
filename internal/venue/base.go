package venue

import (
	"sync"
	"time"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// base carries the reconnect/backoff state, status tracking and
// last-error capture shared by every concrete adapter, so the reconnect
// state machine from spec.md §4.1 is written once instead of five times.
type base struct {
	mu sync.RWMutex

	venue     model.Venue
	connected bool
	connCount int
	lastErr   string

	subscribed map[model.Instrument]bool

	reconnectDelay time.Duration
	backoffFactor  int // current geometric backoff multiplier, reset on success
}

func newBase(v model.Venue, reconnectDelay time.Duration) *base {
	return &base{
		venue:          v,
		subscribed:     make(map[model.Instrument]bool),
		reconnectDelay: reconnectDelay,
		backoffFactor:  1,
	}
}

func (b *base) setConnected(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = ok
	if ok {
		b.connCount++
		b.backoffFactor = 1
	}
}

func (b *base) setLastError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = msg
}

func (b *base) markSubscribed(i model.Instrument) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[i] = true
}

func (b *base) markUnsubscribed(i model.Instrument) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribed, i)
}

func (b *base) status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]model.Instrument, 0, len(b.subscribed))
	for i := range b.subscribed {
		subs = append(subs, i)
	}
	return Status{
		Connected:       b.connected,
		ConnectionCount: b.connCount,
		Subscribed:      subs,
		LastError:       b.lastErr,
	}
}

// nextBackoff returns the delay before the next reconnect attempt,
// capped at 6x the configured base delay, then doubles the internal
// multiplier for the following call. Geometric backoff on repeated
// immediate failures, per spec.md §4.1.
func (b *base) nextBackoff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.reconnectDelay * time.Duration(b.backoffFactor)
	cap := b.reconnectDelay * 6
	if d > cap {
		d = cap
	}
	if b.backoffFactor < 6 {
		b.backoffFactor *= 2
	}
	return d
}
