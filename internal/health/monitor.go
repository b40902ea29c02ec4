// Package health implements the periodic adapter-liveness probe, per
// spec.md §4.6.
package health

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/infra/limits"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

// Reconnector is the collaborator the monitor asks to reconnect a venue
// whose adapter reports disconnected; satisfied by subscription.Manager.
type Reconnector interface {
	ReconnectVenue(v model.Venue) error
}

// Snapshot is the aggregated {working, failed} view emitted once per probe.
type Snapshot struct {
	Working []model.Venue
	Failed  []model.Venue
	At      time.Time
}

// Monitor probes every registered adapter's Status every HealthInterval,
// plus one probe InitialDelay after Run begins, per spec.md §4.6.
type Monitor struct {
	registry     *venue.Registry
	reconnector  Reconnector
	interval     time.Duration
	initialDelay time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Registry
	now          func() time.Time

	// reconnectLimiter caps how often the same venue can trigger a
	// reconnect request, so a flapping adapter can't storm Reconnector.
	reconnectLimiter *limits.PerKeyLimiter

	mu       sync.Mutex
	lastSnap Snapshot
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Monitor. interval defaults to 5 minutes, initialDelay to
// 30 seconds, matching spec.md §4.6's defaults, when zero is passed.
func New(registry *venue.Registry, reconnector Reconnector, interval, initialDelay time.Duration, logger zerolog.Logger, reg *metrics.Registry) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if initialDelay <= 0 {
		initialDelay = 30 * time.Second
	}
	return &Monitor{
		registry:         registry,
		reconnector:      reconnector,
		interval:         interval,
		initialDelay:     initialDelay,
		logger:           logger,
		metrics:          reg,
		now:              time.Now,
		reconnectLimiter: limits.NewPerKeyLimiter(),
	}
}

// Run blocks, probing on the initial-delay-then-interval schedule until
// Stop is called.
func (m *Monitor) Run() {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()
	defer close(doneCh)

	initial := time.NewTimer(m.initialDelay)
	defer initial.Stop()
	select {
	case <-stopCh:
		return
	case <-initial.C:
		m.Probe()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.Probe()
		}
	}
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Probe runs one liveness pass over every registered adapter, triggering a
// reconnect for any adapter reporting disconnected or zero connections.
func (m *Monitor) Probe() Snapshot {
	var working, failed []model.Venue
	for _, a := range m.registry.All() {
		status := a.Status()
		if m.metrics != nil {
			c := 0.0
			if status.Connected {
				c = 1.0
			}
			m.metrics.AdapterConnected.WithLabelValues(string(a.Venue())).Set(c)
		}

		if !status.Connected || status.ConnectionCount == 0 {
			failed = append(failed, a.Venue())
			if !m.reconnectLimiter.Allow(string(a.Venue())) {
				m.logger.Warn().Str("venue", string(a.Venue())).Msg("adapter unhealthy, reconnect throttled")
				continue
			}
			m.logger.Warn().Str("venue", string(a.Venue())).Str("lastError", status.LastError).Msg("adapter unhealthy, requesting reconnect")
			if err := m.reconnector.ReconnectVenue(a.Venue()); err != nil {
				m.logger.Error().Err(err).Str("venue", string(a.Venue())).Msg("reconnect failed")
			}
			continue
		}
		working = append(working, a.Venue())
	}

	snap := Snapshot{Working: working, Failed: failed, At: m.now()}
	m.mu.Lock()
	m.lastSnap = snap
	m.mu.Unlock()
	m.logger.Info().Int("working", len(working)).Int("failed", len(failed)).Msg("health probe complete")
	return snap
}

// LastSnapshot returns the most recent probe result.
func (m *Monitor) LastSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnap
}
