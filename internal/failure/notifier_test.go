package failure

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

func TestNotifySuppressesWithinCooldown(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	n := NewLogNotifier(time.Minute, zerolog.Nop(), reg)
	now := time.Now()
	n.clock = func() time.Time { return now }

	n.Notify("binance", venue.FailureCatalogUnavailable, "timeout")
	n.Notify("binance", venue.FailureCatalogUnavailable, "timeout")

	assert.Len(t, n.lastFire, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FailuresNotified.WithLabelValues("binance", string(venue.FailureCatalogUnavailable))))
}

func TestNotifyFiresAgainAfterCooldown(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	n := NewLogNotifier(time.Minute, zerolog.Nop(), reg)
	now := time.Now()
	n.clock = func() time.Time { return now }

	n.Notify("binance", venue.FailureCatalogUnavailable, "timeout")
	now = now.Add(2 * time.Minute)
	n.clock = func() time.Time { return now }
	n.Notify("binance", venue.FailureCatalogUnavailable, "timeout")

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.FailuresNotified.WithLabelValues("binance", string(venue.FailureCatalogUnavailable))))
}

func TestNotifyDistinctKeysDoNotSuppressEachOther(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	n := NewLogNotifier(time.Minute, zerolog.Nop(), reg)

	n.Notify("binance", venue.FailureCatalogUnavailable, "a")
	n.Notify("kraken", venue.FailureCatalogUnavailable, "a")
	n.Notify("binance", venue.FailureParseFailed, "a")

	assert.Len(t, n.lastFire, 3)
}
