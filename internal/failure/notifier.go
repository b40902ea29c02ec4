// Package failure supplies the one concrete implementation of
// venue.FailureNotifier this repo ships: a deduplicating, cooldown-gated
// logger. spec.md §4.7 specifies only the interface; a real deployment
// would swap this for a paging/chat integration.
package failure

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

type key struct {
	venue   model.Venue
	kind    venue.FailureKind
	message string
}

// LogNotifier deduplicates by (venue, kind, message): a key that fired
// within cooldown is suppressed, per spec.md §4.7.
type LogNotifier struct {
	mu       sync.Mutex
	lastFire map[key]time.Time
	cooldown time.Duration
	logger   zerolog.Logger
	clock    func() time.Time
	metrics  *metrics.Registry
}

// NewLogNotifier builds a notifier that suppresses repeats of the same
// (venue, kind, message) within cooldown.
func NewLogNotifier(cooldown time.Duration, logger zerolog.Logger, reg *metrics.Registry) *LogNotifier {
	return &LogNotifier{
		lastFire: make(map[key]time.Time),
		cooldown: cooldown,
		logger:   logger,
		clock:    time.Now,
		metrics:  reg,
	}
}

func (n *LogNotifier) Notify(v model.Venue, kind venue.FailureKind, message string) {
	k := key{venue: v, kind: kind, message: message}
	now := n.clock()

	n.mu.Lock()
	last, seen := n.lastFire[k]
	suppressed := seen && now.Sub(last) < n.cooldown
	if !suppressed {
		n.lastFire[k] = now
	}
	n.mu.Unlock()

	if suppressed {
		return
	}
	n.logger.Warn().
		Str("venue", string(v)).
		Str("kind", string(kind)).
		Str("message", message).
		Msg("venue failure")
	if n.metrics != nil {
		n.metrics.FailuresNotified.WithLabelValues(string(v), string(kind)).Inc()
	}
}
