package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/cache"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/catalog"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/pricestore"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

func newFixture(t *testing.T, venues []model.Venue) (*Manager, *venue.Registry, *catalog.Service, *pricestore.Store) {
	t.Helper()
	r := venue.NewFakeRegistry(venues, time.Second)
	for _, a := range r.All() {
		require.NoError(t, a.Start(context.Background()))
	}
	svc := catalog.New(r, cache.NewMemory(), catalog.Config{
		QuoteFilter:            "USDT",
		MinVenuesPerInstrument: 2,
		WsTimeout:              time.Second,
	}, zerolog.Nop())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	store := pricestore.New(10)
	mgr := New(r, svc, store, zerolog.Nop())
	return mgr, r, svc, store
}

func TestStartSubscribesEveryActiveInstrument(t *testing.T) {
	mgr, r, svc, _ := newFixture(t, []model.Venue{model.VenueBinance, model.VenueKraken})
	require.NoError(t, mgr.Start())

	for _, instr := range svc.ActiveSet() {
		for _, v := range svc.ExchangesFor(instr) {
			a, ok := r.Get(v)
			require.True(t, ok)
			assert.Contains(t, a.Status().Subscribed, instr)
		}
	}
}

func TestStartIsIdempotentOnDoubleSubscribe(t *testing.T) {
	mgr, r, svc, _ := newFixture(t, []model.Venue{model.VenueBinance, model.VenueKraken})
	require.NoError(t, mgr.Start())
	require.NoError(t, mgr.Start())

	for _, v := range svc.ExchangesFor("BTC/USDT") {
		a, ok := r.Get(v)
		require.True(t, ok)
		count := 0
		for _, s := range a.Status().Subscribed {
			if s == "BTC/USDT" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	}
}

func TestRefreshWithUnchangedCatalogKeepsSubscriptions(t *testing.T) {
	mgr, r, svc, _ := newFixture(t, []model.Venue{model.VenueBinance, model.VenueKraken})
	require.NoError(t, mgr.Start())
	oldActive := svc.ActiveSet()

	mgr.mu.Lock()
	for v := range mgr.current {
		delete(mgr.current[v], "SOL/USDT")
	}
	mgr.mu.Unlock()
	for _, v := range svc.ExchangesFor("SOL/USDT") {
		a, ok := r.Get(v)
		require.True(t, ok)
		require.NoError(t, a.Unsubscribe("SOL/USDT"))
	}

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, mgr.Refresh(oldActive))

	for _, v := range svc.ExchangesFor("BTC/USDT") {
		a, ok := r.Get(v)
		require.True(t, ok)
		assert.Contains(t, a.Status().Subscribed, model.Instrument("BTC/USDT"))
	}
}

func TestReconnectVenueResubscribesActiveInstruments(t *testing.T) {
	mgr, r, _, _ := newFixture(t, []model.Venue{model.VenueBinance, model.VenueKraken})
	require.NoError(t, mgr.Start())

	require.NoError(t, mgr.ReconnectVenue(model.VenueBinance))

	a, ok := r.Get(model.VenueBinance)
	require.True(t, ok)
	assert.True(t, a.Status().Connected)
	assert.NotEmpty(t, a.Status().Subscribed)
}

func TestSubscribeOneReturnsErrorForUnknownVenue(t *testing.T) {
	mgr, _, _, _ := newFixture(t, []model.Venue{model.VenueBinance})
	err := mgr.subscribeOne(model.VenueOKX, "BTC/USDT")
	assert.Error(t, err)
}
