package venue

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// FakeAdapter generates deterministic synthetic ticks from a per-adapter seed, so
// local development and tests don't need live venue connectivity. It
// implements the same Adapter contract as the live venues.
type FakeAdapter struct {
	*base

	name       model.Venue
	rng        *rand.Rand
	priceBase  map[model.Instrument]float64
	volatility float64

	mu        sync.Mutex
	stop      map[model.Instrument]chan struct{}
	clock     Clock
}

// NewFakeAdapter builds a deterministic fake venue adapter. seed governs
// the synthetic price path so repeated runs are reproducible.
func NewFakeAdapter(name model.Venue, seed int64, reconnectDelay time.Duration) *FakeAdapter {
	return &FakeAdapter{
		base:       newBase(name, reconnectDelay),
		name:       name,
		rng:        rand.New(rand.NewSource(seed)),
		priceBase:  map[model.Instrument]float64{"BTC/USDT": 60000, "ETH/USDT": 3000, "SOL/USDT": 150},
		volatility: 0.002,
		stop:       make(map[model.Instrument]chan struct{}),
		clock:      time.Now,
	}
}

func (a *FakeAdapter) Venue() model.Venue { return a.name }

func (a *FakeAdapter) Start(ctx context.Context) error {
	a.setConnected(true)
	log.Info().Str("venue", string(a.name)).Msg("fake adapter started")
	return nil
}

func (a *FakeAdapter) Stop() error {
	a.mu.Lock()
	for _, ch := range a.stop {
		close(ch)
	}
	a.stop = make(map[model.Instrument]chan struct{})
	a.mu.Unlock()
	a.setConnected(false)
	return nil
}

func (a *FakeAdapter) FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error) {
	entries := make([]model.CatalogEntry, 0, len(a.priceBase))
	for instr := range a.priceBase {
		entries = append(entries, model.CatalogEntry{
			Instrument: instr, Base: instr.Base(), Quote: instr.Quote(), Tradable: true,
		})
	}
	return entries, nil
}

func (a *FakeAdapter) Subscribe(instrument model.Instrument, sink Sink) error {
	a.markSubscribed(instrument)
	stopCh := make(chan struct{})
	a.mu.Lock()
	a.stop[instrument] = stopCh
	a.mu.Unlock()

	go a.generate(instrument, sink, stopCh)
	return nil
}

func (a *FakeAdapter) Unsubscribe(instrument model.Instrument) error {
	a.mu.Lock()
	if ch, ok := a.stop[instrument]; ok {
		close(ch)
		delete(a.stop, instrument)
	}
	a.mu.Unlock()
	a.markUnsubscribed(instrument)
	return nil
}

func (a *FakeAdapter) Status() Status { return a.status() }

func (a *FakeAdapter) generate(instrument model.Instrument, sink Sink, stop chan struct{}) {
	price, ok := a.priceBase[instrument]
	if !ok {
		price = 100
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			drift := (a.rng.Float64()*2 - 1) * a.volatility
			price = price * (1 + drift)
			if price <= 0 || math.IsNaN(price) {
				continue
			}
			sink(model.Tick{
				Instrument: instrument,
				Venue:      a.name,
				Price:      price,
				IngestTime: a.clock(),
			})
		}
	}
}
