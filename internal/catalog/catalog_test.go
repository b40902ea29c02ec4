package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/cache"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

func TestRefreshIntersectionCutoff(t *testing.T) {
	r := venue.NewFakeRegistry([]model.Venue{model.VenueBinance, model.VenueKraken, model.VenueCoinbase}, time.Second)
	svc := New(r, cache.NewMemory(), Config{
		QuoteFilter:            "USDT",
		MinVenuesPerInstrument: 2,
		WsTimeout:              time.Second,
	}, zerolog.Nop())

	active, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	// The fake adapters all report BTC/USDT, ETH/USDT, SOL/USDT, so all
	// three appear on 3 venues >= MinVenuesPerInstrument(2).
	assert.Contains(t, active, model.Instrument("BTC/USDT"))
	assert.Contains(t, active, model.Instrument("ETH/USDT"))
}

func TestRefreshIsIdempotent(t *testing.T) {
	r := venue.NewFakeRegistry([]model.Venue{model.VenueBinance, model.VenueKraken}, time.Second)
	svc := New(r, cache.NewMemory(), Config{
		QuoteFilter:            "USDT",
		MinVenuesPerInstrument: 2,
		WsTimeout:              time.Second,
	}, zerolog.Nop())

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	second, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRefreshFallsBackWhenEmpty(t *testing.T) {
	r := venue.NewFakeRegistry(nil, time.Second) // no adapters -> empty intersection
	svc := New(r, cache.NewMemory(), Config{
		QuoteFilter:            "USDT",
		MinVenuesPerInstrument: 2,
		EnableFallbacks:        true,
		FallbackInstruments:    []model.Instrument{"BTC/USDT"},
		WsTimeout:              time.Second,
	}, zerolog.Nop())

	active, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Instrument{"BTC/USDT"}, active)
}

func TestDiffComputesAddedAndRemoved(t *testing.T) {
	old := []model.Instrument{"BTC/USDT", "ETH/USDT"}
	new := []model.Instrument{"ETH/USDT", "SOL/USDT"}
	added, removed := Diff(old, new)
	assert.Equal(t, []model.Instrument{"SOL/USDT"}, added)
	assert.Equal(t, []model.Instrument{"BTC/USDT"}, removed)
}

func TestExchangesForReflectsLastRefresh(t *testing.T) {
	r := venue.NewFakeRegistry([]model.Venue{model.VenueBinance, model.VenueKraken}, time.Second)
	svc := New(r, cache.NewMemory(), Config{
		QuoteFilter: "USDT", MinVenuesPerInstrument: 2, WsTimeout: time.Second,
	}, zerolog.Nop())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	venues := svc.ExchangesFor("BTC/USDT")
	assert.ElementsMatch(t, []model.Venue{model.VenueBinance, model.VenueKraken}, venues)
}
