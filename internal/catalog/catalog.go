// Package catalog implements common-instrument discovery: fetching each
// venue's catalog in parallel and intersecting to the active
// subscription set, per spec.md §3(d)/§4.3.
package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/cache"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

// Service fetches per-venue catalogs, computes the intersection and
// publishes the resulting ActiveSet.
type Service struct {
	registry            *venue.Registry
	cache                cache.Cache
	cacheTTL             time.Duration
	quoteFilter          string
	minVenuesPerInstrument int
	fallback             []model.Instrument
	enableFallbacks      bool
	wsTimeout            time.Duration
	logger               zerolog.Logger

	mu          sync.RWMutex
	activeSet   []model.Instrument
	exchangeMap map[model.Instrument][]model.Venue
}

// Config groups the catalog service's constructor parameters, mirroring
// the relevant slice of the detector-wide configuration.
type Config struct {
	CacheTTL               time.Duration
	QuoteFilter            string
	MinVenuesPerInstrument int
	FallbackInstruments    []model.Instrument
	EnableFallbacks        bool
	WsTimeout              time.Duration
}

// New builds a CatalogService. c is the cache backend catalog fetches are
// memoized through (see internal/cache for the Redis/in-process choice).
func New(registry *venue.Registry, c cache.Cache, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		registry:               registry,
		cache:                  c,
		cacheTTL:               cfg.CacheTTL,
		quoteFilter:            cfg.QuoteFilter,
		minVenuesPerInstrument: cfg.MinVenuesPerInstrument,
		fallback:               cfg.FallbackInstruments,
		enableFallbacks:        cfg.EnableFallbacks,
		wsTimeout:              cfg.WsTimeout,
		logger:                 logger,
		exchangeMap:            make(map[model.Instrument][]model.Venue),
	}
}

type venueCatalog struct {
	venue   model.Venue
	entries []model.CatalogEntry
}

// Refresh fetches every adapter's catalog in parallel, computes the
// intersection, and publishes the new ActiveSet. It is idempotent when
// the underlying catalogs are unchanged — the same input always yields
// the same sorted ActiveSet.
func (s *Service) Refresh(ctx context.Context) ([]model.Instrument, error) {
	adapters := s.registry.All()
	results := make([]venueCatalog, len(adapters))

	var wg sync.WaitGroup
	wg.Add(len(adapters))
	for i, a := range adapters {
		go func(i int, a venue.Adapter) {
			defer wg.Done()
			entries := s.fetchCached(ctx, a)
			results[i] = venueCatalog{venue: a.Venue(), entries: entries}
		}(i, a)
	}
	wg.Wait()

	counts := make(map[model.Instrument]int)
	exchangeMap := make(map[model.Instrument][]model.Venue)
	for _, r := range results {
		for _, e := range r.entries {
			if !e.Tradable {
				continue
			}
			if s.quoteFilter != "" && !strings.EqualFold(e.Quote, s.quoteFilter) {
				continue
			}
			counts[e.Instrument]++
			exchangeMap[e.Instrument] = append(exchangeMap[e.Instrument], r.venue)
		}
	}

	active := make([]model.Instrument, 0, len(counts))
	for instr, n := range counts {
		if n >= s.minVenuesPerInstrument {
			active = append(active, instr)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if counts[active[i]] != counts[active[j]] {
			return counts[active[i]] > counts[active[j]]
		}
		return active[i] < active[j]
	})

	if len(active) == 0 && s.enableFallbacks {
		active = append([]model.Instrument(nil), s.fallback...)
		sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
		s.logger.Warn().Msg("catalog intersection empty, falling back to static instrument list")
	}

	s.mu.Lock()
	s.activeSet = active
	s.exchangeMap = exchangeMap
	s.mu.Unlock()

	return active, nil
}

func (s *Service) fetchCached(ctx context.Context, a venue.Adapter) []model.CatalogEntry {
	key := "catalog:" + string(a.Venue())
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			var entries []model.CatalogEntry
			if err := json.Unmarshal(b, &entries); err == nil {
				return entries
			}
		}
	}

	var fallback []model.Instrument
	if s.enableFallbacks {
		fallback = s.fallback
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.wsTimeout)
	defer cancel()
	entries, err := a.FetchCatalog(fetchCtx, fallback)
	if err != nil {
		s.logger.Warn().Err(err).Str("venue", string(a.Venue())).Msg("catalog fetch failed")
		return nil
	}

	if s.cache != nil {
		if b, err := json.Marshal(entries); err == nil {
			s.cache.Set(key, b, s.cacheTTL)
		}
	}
	return entries
}

// ActiveSet returns the most recently published active instrument set.
func (s *Service) ActiveSet() []model.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Instrument, len(s.activeSet))
	copy(out, s.activeSet)
	return out
}

// ExchangesFor returns the venues on which instrument appeared during the
// last refresh, used to scope the opportunity engine's work.
func (s *Service) ExchangesFor(i model.Instrument) []model.Venue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Venue, len(s.exchangeMap[i]))
	copy(out, s.exchangeMap[i])
	return out
}

// Diff computes additions and removals between the old and new active
// sets, for the SubscriptionManager's refresh operation.
func Diff(old, new []model.Instrument) (added, removed []model.Instrument) {
	oldSet := make(map[model.Instrument]bool, len(old))
	for _, i := range old {
		oldSet[i] = true
	}
	newSet := make(map[model.Instrument]bool, len(new))
	for _, i := range new {
		newSet[i] = true
	}
	for _, i := range new {
		if !oldSet[i] {
			added = append(added, i)
		}
	}
	for _, i := range old {
		if !newSet[i] {
			removed = append(removed, i)
		}
	}
	return added, removed
}
