// Package opportunity implements the periodic pairwise spread comparator
// and the open/update/close state machine over ActiveOpportunity, per
// spec.md §4.5.
package opportunity

import (
	"time"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// Direction names which side of the pair is the buy leg, per spec.md §3.
type Direction string

const (
	BuyASellB Direction = "BUY_A_SELL_B"
	BuyBSellA Direction = "BUY_B_SELL_A"
)

// CloseReason names why an ActiveOpportunity left the active map, per
// spec.md §3/§4.5.
type CloseReason string

const (
	CloseBelowThreshold  CloseReason = "BELOW_THRESHOLD"
	ClosePriceConverged  CloseReason = "PRICE_CONVERGED"
	CloseTimeout         CloseReason = "TIMEOUT"
	CloseManual          CloseReason = "MANUAL"
)

// ID identifies an opportunity by instrument and unordered venue pair. The
// venue pair is always stored sorted so (i, a, b) and (i, b, a) collapse
// to the same id, per spec.md §3.
type ID struct {
	Instrument model.Instrument
	VenueA     model.Venue
	VenueB     model.Venue
}

// NewID sorts venueA/venueB lexicographically so identity is symmetric in
// the pair regardless of scan order.
func NewID(instrument model.Instrument, venueA, venueB model.Venue) ID {
	if venueA > venueB {
		venueA, venueB = venueB, venueA
	}
	return ID{Instrument: instrument, VenueA: venueA, VenueB: venueB}
}

func (id ID) String() string {
	return string(id.Instrument) + "-{" + string(id.VenueA) + "," + string(id.VenueB) + "}"
}

// Snapshot is the spread reading computed for a venue pair at a single
// instant, shared by ActiveOpportunity's current/peak fields and by
// ClosedOpportunity's opening/closing records.
type Snapshot struct {
	PriceA        float64
	PriceB        float64
	SpreadAbs     float64
	SpreadPct     float64
	ImpliedProfit float64
	Direction     Direction
	Time          time.Time
}

// PeakRecord is the highest spreadPct ever observed for an opportunity,
// non-decreasing over its lifetime (spec.md §8).
type PeakRecord struct {
	SpreadPct float64
	Profit    float64
	Time      time.Time
}

// ActiveOpportunity is mutated only inside OpportunityEngine scans, per
// spec.md §3's ownership rule.
type ActiveOpportunity struct {
	ID           ID
	OpenTime     time.Time
	LastSeenTime time.Time
	Opening      Snapshot
	Current      Snapshot
	Peak         PeakRecord
	AlertsSent   int
	LastAlertAt  time.Time
}

// ClosedOpportunity is an immutable history record produced on close, per
// spec.md §3.
type ClosedOpportunity struct {
	ID          ID
	Opening     Snapshot
	Closing     Snapshot
	Peak        PeakRecord
	OpenTime    time.Time
	CloseTime   time.Time
	Duration    time.Duration
	CloseReason CloseReason
	AlertsSent  int
}

// AlertKind distinguishes the two event shapes an AlertEvent can carry.
type AlertKind string

const (
	AlertOpenOrUpdate AlertKind = "OPEN_OR_UPDATE"
	AlertClose        AlertKind = "CLOSE"
)

// AlertEvent is the union consumed by the external AlertSink, per
// spec.md §3/§6. Exactly one of Active/Closed is populated, matching Kind.
type AlertEvent struct {
	ID       string
	Kind     AlertKind
	Priority int
	Active   *ActiveOpportunity
	Closed   *ClosedOpportunity
}

// computeSnapshot implements the spread formula from spec.md §4.5 for a
// pair of positive prices labelled a, b (a belongs to the lexicographically
// smaller venue once the caller sorts the pair).
func computeSnapshot(priceA, priceB float64, notionalUnits float64, now time.Time) Snapshot {
	spreadAbs := priceA - priceB
	if spreadAbs < 0 {
		spreadAbs = -spreadAbs
	}
	mid := (priceA + priceB) / 2
	spreadPct := 0.0
	if mid > 0 {
		spreadPct = 100 * spreadAbs / mid
	}
	direction := BuyASellB
	if priceA >= priceB {
		direction = BuyBSellA
	}
	return Snapshot{
		PriceA:        priceA,
		PriceB:        priceB,
		SpreadAbs:     spreadAbs,
		SpreadPct:     spreadPct,
		ImpliedProfit: spreadAbs * notionalUnits,
		Direction:     direction,
		Time:          now,
	}
}

func priorityFromPct(pct float64) int {
	p := int(pct * 10)
	if p < 0 {
		p = 0
	}
	return p
}

