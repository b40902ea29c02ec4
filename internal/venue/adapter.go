// Package venue is the venue adapter layer: a uniform contract that turns
// heterogeneous streaming feeds into normalized Ticks, with reconnection,
// health tracking and fallback-on-failure policy, per spec.md §4.1.
package venue

import (
	"context"
	"time"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// Sink receives one Tick per parsed frame, exactly once, per spec.md
// §4.1's contract. Adapters must never call Sink with an invalid price.
type Sink func(model.Tick)

// Status is the read-only snapshot returned by Adapter.Status.
type Status struct {
	Connected       bool
	ConnectionCount int
	Subscribed      []model.Instrument
	LastError       string
}

// Adapter is the capability set identical for every venue, per spec.md
// §4.1. It is implemented by a closed, build-time-known set of venues
// (Binance, Kraken, Coinbase, OKX, and the deterministic Fake adapter);
// the core dispatches to one of these by Venue id rather than supporting
// open-world extension.
type Adapter interface {
	Venue() model.Venue

	// Start is idempotent. The Binance and Fake adapters open no sockets in
	// Start; the Kraken, Coinbase and OKX adapters launch their
	// shared-connection loop from Start, and that loop dials the venue.
	Start(ctx context.Context) error

	// Stop closes all sockets and clears local connection state. After
	// Stop returns, no further ticks are delivered even if an in-flight
	// frame arrives.
	Stop() error

	// FetchCatalog fetches the venue's tradable instrument catalog,
	// bounded by the adapter's configured timeout. On failure it returns
	// either an empty list or, when fallback is requested and configured,
	// fallback instead of an error, per spec.md §4.1.
	FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error)

	// Subscribe opens or reuses a stream carrying instrument's ticker
	// and delivers every parsed, valid tick to sink exactly once.
	Subscribe(instrument model.Instrument, sink Sink) error

	Unsubscribe(instrument model.Instrument) error

	Status() Status
}

// FailureKind is the adapter-reported failure taxonomy from spec.md §7.
type FailureKind string

const (
	FailureCatalogUnavailable      FailureKind = "CatalogFetchFailed"
	FailureStreamOpenFailed        FailureKind = "StreamOpenFailed"
	FailureStreamClosedUnexpected  FailureKind = "StreamClosedUnexpectedly"
	FailureParseFailed             FailureKind = "ParseFailed"
)

// FailureNotifier is the out-of-core collaborator adapters report
// failures to; spec.md §4.7 specifies only this interface.
type FailureNotifier interface {
	Notify(venue model.Venue, kind FailureKind, message string)
}

// Clock lets tests inject deterministic time; Start/Subscribe paths use
// it wherever spec.md's timers are consulted.
type Clock func() time.Time
