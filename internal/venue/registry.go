package venue

import (
	"fmt"
	"time"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// Registry is the dispatch table keyed by venue id, per spec.md §9's
// "tagged variant over the venue set plus a dispatch table" strategy —
// a closed set of polymorphic implementations, no open-world extension.
type Registry struct {
	adapters map[model.Venue]Adapter
	order    []model.Venue
}

// NewRegistry builds the closed-set registry for the four live venues
// (Binance, Kraken, Coinbase, OKX); the Fake adapter is only built by
// NewFakeRegistry.
// wsTimeout and reconnectDelay are shared across adapters since they are
// cross-cutting contract parameters, per spec.md §4.1; notifier may be
// nil to disable failure reporting (e.g. in tests).
func NewRegistry(wsTimeout, reconnectDelay time.Duration, notifier FailureNotifier) *Registry {
	r := &Registry{adapters: make(map[model.Venue]Adapter)}
	r.register(NewBinanceAdapter(wsTimeout, reconnectDelay, notifier))
	r.register(NewKrakenAdapter(wsTimeout, reconnectDelay, notifier))
	r.register(NewCoinbaseAdapter(wsTimeout, reconnectDelay, notifier))
	r.register(NewOKXAdapter(wsTimeout, reconnectDelay, notifier))
	return r
}

// NewFakeRegistry builds a registry of deterministic fake adapters, one
// per requested venue, for local development and tests.
func NewFakeRegistry(venues []model.Venue, reconnectDelay time.Duration) *Registry {
	r := &Registry{adapters: make(map[model.Venue]Adapter)}
	for idx, v := range venues {
		r.register(NewFakeAdapter(v, int64(idx+1), reconnectDelay))
	}
	return r
}

func (r *Registry) register(a Adapter) {
	r.adapters[a.Venue()] = a
	r.order = append(r.order, a.Venue())
}

// Get returns the adapter for venue, or false if venue is not in the
// closed set this registry was built with.
func (r *Registry) Get(v model.Venue) (Adapter, bool) {
	a, ok := r.adapters[v]
	return a, ok
}

// MustGet is Get that panics on an unknown venue; for use at startup
// wiring where an unknown venue is a configuration error, not a runtime
// condition.
func (r *Registry) MustGet(v model.Venue) Adapter {
	a, ok := r.Get(v)
	if !ok {
		panic(fmt.Sprintf("venue: unknown venue %q", v))
	}
	return a
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.adapters[v])
	}
	return out
}

// Venues returns the venue ids in registration order.
func (r *Registry) Venues() []model.Venue {
	out := make([]model.Venue, len(r.order))
	copy(out, r.order)
	return out
}
