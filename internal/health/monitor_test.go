package health

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

type fakeReconnector struct {
	reconnected []model.Venue
}

func (f *fakeReconnector) ReconnectVenue(v model.Venue) error {
	f.reconnected = append(f.reconnected, v)
	return nil
}

func TestProbeFlagsDisconnectedAdapters(t *testing.T) {
	r := venue.NewFakeRegistry([]model.Venue{model.VenueBinance, model.VenueKraken}, time.Second)
	a, ok := r.Get(model.VenueBinance)
	require.True(t, ok)
	require.NoError(t, a.Start(nil))
	b, ok := r.Get(model.VenueKraken)
	require.True(t, ok)
	// leave b unstarted so its Status() reports not connected

	rec := &fakeReconnector{}
	mon := New(r, rec, time.Minute, time.Millisecond, zerolog.Nop(), nil)

	snap := mon.Probe()
	assert.Contains(t, snap.Working, model.VenueBinance)
	assert.Contains(t, snap.Failed, model.VenueKraken)
	assert.Contains(t, rec.reconnected, model.VenueKraken)
	assert.NotContains(t, rec.reconnected, model.VenueBinance)
	_ = b
}

func TestProbeRecordsLastSnapshot(t *testing.T) {
	r := venue.NewFakeRegistry([]model.Venue{model.VenueBinance}, time.Second)
	a, ok := r.Get(model.VenueBinance)
	require.True(t, ok)
	require.NoError(t, a.Start(nil))

	mon := New(r, &fakeReconnector{}, time.Minute, time.Millisecond, zerolog.Nop(), nil)
	mon.Probe()

	snap := mon.LastSnapshot()
	assert.Contains(t, snap.Working, model.VenueBinance)
}
