package opportunity

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/pricestore"
)

// ActiveSetSource supplies the instruments the engine scans, decoupling
// the engine from the concrete CatalogService type.
type ActiveSetSource interface {
	ActiveSet() []model.Instrument
}

// Sink is the egress the engine enqueues AlertEvents into; alert.QueueSink
// satisfies it.
type Sink interface {
	Enqueue(event AlertEvent, retries int) error
}

// Config groups the engine's tunables, mirroring spec.md §6's
// configuration table.
type Config struct {
	ScanInterval          time.Duration
	OpenThresholdPct      float64
	CloseThresholdPct     float64
	AlertCooldown         time.Duration
	MinProfit             float64
	NotionalUnits         float64
	MinCloseAlertDuration time.Duration
	MaxOpportunityAge     time.Duration
	StaleAfter            time.Duration
	EnableClosedAlerts    bool
	ClosedHistorySize     int
	AlertRetries          int
}

const priceConvergedCutoffPct = 0.1

// Engine runs the periodic pairwise comparator and the open/update/close
// state machine over ActiveOpportunity, per spec.md §4.5. All mutable
// state (active map, whose entries carry each opportunity's LastAlertAt
// cooldown timestamp, and closed history) is exclusively owned by
// the engine's scan goroutine; no other goroutine may mutate it, per
// spec.md §5.
type Engine struct {
	store    *pricestore.Store
	catalog  ActiveSetSource
	sink     Sink
	cfg      Config
	logger   zerolog.Logger
	metrics  *metrics.Registry
	now      func() time.Time

	mu     sync.Mutex
	active map[ID]*ActiveOpportunity
	closed []ClosedOpportunity

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Engine. store is read for prices, catalog supplies the
// instrument scan set, sink is the only egress for AlertEvents.
func New(store *pricestore.Store, catalog ActiveSetSource, sink Sink, cfg Config, logger zerolog.Logger, reg *metrics.Registry) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		now:     time.Now,
		active:  make(map[ID]*ActiveOpportunity),
	}
}

// Run blocks, scanning every ScanInterval until ctx-like stop is signalled
// via Stop. Each scan is atomic from the engine's perspective: checkCloses
// runs before findOpens, per spec.md §4.5.
func (e *Engine) Run() {
	e.mu.Lock()
	if e.stopCh != nil {
		e.mu.Unlock()
		return
	}
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.Scan(e.now())
		}
	}
}

// Stop halts the scan loop. No new alerts are enqueued once Stop returns
// and the in-flight scan, if any, has completed.
func (e *Engine) Stop() {
	e.mu.Lock()
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Scan runs one checkCloses+findOpens pass as of now. Exported so tests
// and one-shot CLI invocations can drive deterministic scans without the
// ticker loop.
func (e *Engine) Scan(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("opportunity scan aborted")
		}
	}()

	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.checkCloses(now)
	e.findOpens(now)

	if e.metrics != nil {
		e.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		e.metrics.ActiveOpportunities.Set(float64(len(e.active)))
	}
}

// findOpens implements spec.md §4.5's findOpens: enumerate unordered venue
// pairs per instrument, validate thresholds, open or update.
func (e *Engine) findOpens(now time.Time) {
	for _, instrument := range e.catalog.ActiveSet() {
		ticks := e.store.PricesFor(instrument)
		fresh := make([]model.Tick, 0, len(ticks))
		for _, t := range ticks {
			if !e.store.IsStale(instrument, t.Venue, now, e.cfg.StaleAfter) {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) < 2 {
			continue
		}
		sort.Slice(fresh, func(i, j int) bool { return fresh[i].Venue < fresh[j].Venue })

		for i := 0; i < len(fresh); i++ {
			for j := i + 1; j < len(fresh); j++ {
				e.evaluatePair(instrument, fresh[i], fresh[j], now)
			}
		}
	}
}

func (e *Engine) evaluatePair(instrument model.Instrument, t1, t2 model.Tick, now time.Time) {
	id := NewID(instrument, t1.Venue, t2.Venue)
	priceA, priceB := t1.Price, t2.Price
	if t1.Venue != id.VenueA {
		priceA, priceB = t2.Price, t1.Price
	}

	snap := computeSnapshot(priceA, priceB, e.cfg.NotionalUnits, now)
	if !finiteSnapshot(snap) {
		return
	}
	if snap.SpreadPct < e.cfg.OpenThresholdPct || snap.ImpliedProfit < e.cfg.MinProfit {
		return
	}

	o, exists := e.active[id]
	if !exists {
		o = &ActiveOpportunity{
			ID:           id,
			OpenTime:     now,
			LastSeenTime: now,
			Opening:      snap,
			Current:      snap,
			Peak:         PeakRecord{SpreadPct: snap.SpreadPct, Profit: snap.ImpliedProfit, Time: now},
			AlertsSent:   1,
			LastAlertAt:  now,
		}
		e.active[id] = o
		e.emit(AlertOpenOrUpdate, id.String(), priorityFromPct(snap.SpreadPct), o, nil)
		return
	}

	o.Current = snap
	o.LastSeenTime = now
	if snap.SpreadPct > o.Peak.SpreadPct {
		o.Peak = PeakRecord{SpreadPct: snap.SpreadPct, Profit: snap.ImpliedProfit, Time: now}
	}
	if now.Sub(o.LastAlertAt) >= e.cfg.AlertCooldown {
		o.AlertsSent++
		o.LastAlertAt = now
		e.emit(AlertOpenOrUpdate, id.String(), priorityFromPct(snap.SpreadPct), o, nil)
	}
}

// checkCloses implements spec.md §4.5's checkCloses: recompute spread for
// every active opportunity, close on the first matching condition in the
// normative precedence order (below-threshold wins over converged).
func (e *Engine) checkCloses(now time.Time) {
	for id, o := range e.active {
		tA, okA := e.store.Get(id.Instrument, id.VenueA)
		tB, okB := e.store.Get(id.Instrument, id.VenueB)
		staleA := !okA || e.store.IsStale(id.Instrument, id.VenueA, now, e.cfg.StaleAfter)
		staleB := !okB || e.store.IsStale(id.Instrument, id.VenueB, now, e.cfg.StaleAfter)

		if staleA || staleB {
			e.close(id, o, ClosePriceConverged, o.Current, now)
			continue
		}

		snap := computeSnapshot(tA.Price, tB.Price, e.cfg.NotionalUnits, now)
		switch {
		case snap.SpreadPct < e.cfg.CloseThresholdPct:
			e.close(id, o, CloseBelowThreshold, snap, now)
			continue
		case snap.SpreadPct < priceConvergedCutoffPct:
			e.close(id, o, ClosePriceConverged, snap, now)
			continue
		case now.Sub(o.OpenTime) > e.cfg.MaxOpportunityAge:
			e.close(id, o, CloseTimeout, snap, now)
			continue
		}

		o.Current = snap
		o.LastSeenTime = now
		if snap.SpreadPct > o.Peak.SpreadPct {
			o.Peak = PeakRecord{SpreadPct: snap.SpreadPct, Profit: snap.ImpliedProfit, Time: now}
		}
	}
}

func (e *Engine) close(id ID, o *ActiveOpportunity, reason CloseReason, closing Snapshot, now time.Time) {
	delete(e.active, id)
	closedRec := ClosedOpportunity{
		ID:          id,
		Opening:     o.Opening,
		Closing:     closing,
		Peak:        o.Peak,
		OpenTime:    o.OpenTime,
		CloseTime:   now,
		Duration:    now.Sub(o.OpenTime),
		CloseReason: reason,
		AlertsSent:  o.AlertsSent,
	}
	e.closed = append(e.closed, closedRec)
	if limit := e.cfg.ClosedHistorySize; limit > 0 && len(e.closed) > limit {
		e.closed = e.closed[len(e.closed)-limit:]
	}

	if e.metrics != nil {
		e.metrics.OpportunitiesClosed.WithLabelValues(string(reason)).Inc()
	}

	if closedRec.Duration >= e.cfg.MinCloseAlertDuration && e.cfg.EnableClosedAlerts {
		e.emit(AlertClose, id.String(), priorityFromPct(o.Peak.SpreadPct), nil, &closedRec)
	}
}

func (e *Engine) emit(kind AlertKind, id string, priority int, active *ActiveOpportunity, closed *ClosedOpportunity) {
	var activeCopy *ActiveOpportunity
	if active != nil {
		c := *active
		activeCopy = &c
	}
	event := AlertEvent{ID: id, Kind: kind, Priority: priority, Active: activeCopy, Closed: closed}
	if err := e.sink.Enqueue(event, e.cfg.AlertRetries); err != nil {
		e.logger.Warn().Err(err).Str("id", id).Msg("alert enqueue failed")
	}
}

// ClosedHistory returns a copy of the bounded closed-opportunity history,
// most recent last.
func (e *Engine) ClosedHistory() []ClosedOpportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ClosedOpportunity, len(e.closed))
	copy(out, e.closed)
	return out
}

// ActiveCount reports the number of currently open opportunities.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// ActiveOpportunities returns a copy of every currently open opportunity.
func (e *Engine) ActiveOpportunities() []ActiveOpportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ActiveOpportunity, 0, len(e.active))
	for _, o := range e.active {
		out = append(out, *o)
	}
	return out
}

// ActiveByID returns a copy of the active opportunity for id, if open.
func (e *Engine) ActiveByID(id ID) (ActiveOpportunity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.active[id]
	if !ok {
		return ActiveOpportunity{}, false
	}
	return *o, true
}

func finiteSnapshot(s Snapshot) bool {
	return finite(s.PriceA) && finite(s.PriceB) && finite(s.SpreadAbs) && finite(s.SpreadPct) && finite(s.ImpliedProfit)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

