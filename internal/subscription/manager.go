// Package subscription wires the catalog service's active set to the
// venue adapters, diffing on refresh and re-subscribing on an explicit
// reconnect, per spec.md §4.4.
package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/catalog"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/pricestore"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

// Manager subscribes each adapter to every instrument in the active set
// that venue also carries, forwarding every parsed tick into the
// PriceStore.
type Manager struct {
	registry *venue.Registry
	catalog  *catalog.Service
	store    *pricestore.Store
	logger   zerolog.Logger

	mu       sync.Mutex
	current  map[model.Venue]map[model.Instrument]bool
}

// New builds a SubscriptionManager over registry, using catalog to learn
// which venues carry which instrument and store as the sink every
// subscription forwards into.
func New(registry *venue.Registry, cat *catalog.Service, store *pricestore.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		registry: registry,
		catalog:  cat,
		store:    store,
		logger:   logger,
		current:  make(map[model.Venue]map[model.Instrument]bool),
	}
}

// Start performs the initial wiring after catalog discovery: for each
// adapter, subscribe to every instrument in the active set that venue
// also carries.
func (m *Manager) Start() error {
	active := m.catalog.ActiveSet()
	for _, instr := range active {
		for _, v := range m.catalog.ExchangesFor(instr) {
			if err := m.subscribeOne(v, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

// Refresh diffs the prior active set against the catalog's current one
// and applies subscribe/unsubscribe calls for the difference, per
// instrument/venue pairing from ExchangesFor.
func (m *Manager) Refresh(oldActive []model.Instrument) error {
	newActive := m.catalog.ActiveSet()
	added, removed := catalog.Diff(oldActive, newActive)

	for _, instr := range added {
		for _, v := range m.catalog.ExchangesFor(instr) {
			if err := m.subscribeOne(v, instr); err != nil {
				return err
			}
		}
	}
	for _, instr := range removed {
		for v, instruments := range m.current {
			if instruments[instr] {
				if err := m.unsubscribeOne(v, instr); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReconnectVenue re-issues every active subscription for v. Adapters are
// responsible for re-subscribing their own active set on an ordinary
// reconnect; this is only invoked on an explicit operator/health-monitor
// request, per spec.md §4.4.
func (m *Manager) ReconnectVenue(v model.Venue) error {
	a, ok := m.registry.Get(v)
	if !ok {
		return fmt.Errorf("subscription: unknown venue %q", v)
	}
	if err := a.Stop(); err != nil {
		return err
	}

	m.mu.Lock()
	instruments := make([]model.Instrument, 0, len(m.current[v]))
	for i := range m.current[v] {
		instruments = append(instruments, i)
	}
	delete(m.current, v)
	m.mu.Unlock()

	if err := a.Start(context.Background()); err != nil {
		return err
	}
	for _, instr := range instruments {
		if err := m.subscribeOne(v, instr); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) subscribeOne(v model.Venue, instr model.Instrument) error {
	a, ok := m.registry.Get(v)
	if !ok {
		return fmt.Errorf("subscription: unknown venue %q", v)
	}
	m.mu.Lock()
	if m.current[v] == nil {
		m.current[v] = make(map[model.Instrument]bool)
	}
	already := m.current[v][instr]
	m.current[v][instr] = true
	m.mu.Unlock()
	if already {
		return nil
	}

	m.logger.Info().Str("venue", string(v)).Str("instrument", string(instr)).Msg("subscribing")
	return a.Subscribe(instr, func(t model.Tick) { m.store.Put(t) })
}

func (m *Manager) unsubscribeOne(v model.Venue, instr model.Instrument) error {
	a, ok := m.registry.Get(v)
	if !ok {
		return fmt.Errorf("subscription: unknown venue %q", v)
	}
	m.mu.Lock()
	if m.current[v] != nil {
		delete(m.current[v], instr)
	}
	m.mu.Unlock()

	m.logger.Info().Str("venue", string(v)).Str("instrument", string(instr)).Msg("unsubscribing")
	return a.Unsubscribe(instr)
}
