// Package metrics holds the in-process Prometheus collectors for the
// detector. No HTTP exposition surface is built here — that remains the
// declared non-goal from spec.md §1 — but the components update these
// collectors so an external HTTP surface could scrape them later. The
// catalog cache hit/miss counters are registered but no component updates
// them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every collector the detector's components update.
type Registry struct {
	PriceStoreSize      prometheus.Gauge
	ActiveOpportunities prometheus.Gauge
	AlertsEnqueued       *prometheus.CounterVec
	OpportunitiesClosed  *prometheus.CounterVec
	AdapterConnected     *prometheus.GaugeVec
	ScanDuration         prometheus.Histogram
	FailuresNotified     *prometheus.CounterVec
	CatalogCacheHits     prometheus.Counter
	CatalogCacheMisses   prometheus.Counter
}

// NewRegistry builds and registers every collector against reg. Pass
// prometheus.NewRegistry() in production, or a throwaway registry in
// tests to avoid collisions across test runs.
func NewRegistry(reg *prometheus.Registry) *Registry {
	m := &Registry{
		PriceStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spreadbot_pricestore_keys",
			Help: "Number of (instrument, venue) keys currently tracked by the price store.",
		}),
		ActiveOpportunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spreadbot_active_opportunities",
			Help: "Number of opportunities currently open.",
		}),
		AlertsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadbot_alerts_enqueued_total",
			Help: "Total alert events enqueued to the sink, by event type.",
		}, []string{"event_type"}),
		OpportunitiesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadbot_opportunities_closed_total",
			Help: "Total opportunities closed, by close reason.",
		}, []string{"reason"}),
		AdapterConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spreadbot_adapter_connected",
			Help: "1 if the venue adapter is connected, else 0.",
		}, []string{"venue"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spreadbot_scan_duration_seconds",
			Help:    "Duration of a single opportunity-engine scan.",
			Buckets: prometheus.DefBuckets,
		}),
		FailuresNotified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadbot_failures_notified_total",
			Help: "Total deduplicated failure notifications, by venue and kind.",
		}, []string{"venue", "kind"}),
		CatalogCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadbot_catalog_cache_hits_total",
			Help: "Total catalog cache hits.",
		}),
		CatalogCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadbot_catalog_cache_misses_total",
			Help: "Total catalog cache misses.",
		}),
	}
	reg.MustRegister(
		m.PriceStoreSize, m.ActiveOpportunities, m.AlertsEnqueued, m.OpportunitiesClosed,
		m.AdapterConnected, m.ScanDuration, m.FailuresNotified, m.CatalogCacheHits, m.CatalogCacheMisses,
	)
	return m
}
