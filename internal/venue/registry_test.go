package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

func TestRegistryGetKnownVenues(t *testing.T) {
	r := NewRegistry(time.Second, time.Second, nil)
	for _, v := range []model.Venue{model.VenueBinance, model.VenueKraken, model.VenueCoinbase, model.VenueOKX} {
		a, ok := r.Get(v)
		assert.True(t, ok, v)
		assert.Equal(t, v, a.Venue())
	}
}

func TestRegistryGetUnknownVenue(t *testing.T) {
	r := NewRegistry(time.Second, time.Second, nil)
	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}

func TestFakeRegistryBuildsRequestedVenues(t *testing.T) {
	r := NewFakeRegistry([]model.Venue{model.VenueBinance, model.VenueKraken}, time.Second)
	assert.Len(t, r.All(), 2)
	assert.ElementsMatch(t, []model.Venue{model.VenueBinance, model.VenueKraken}, r.Venues())
}

func TestSymbolCanonicalization(t *testing.T) {
	assert.Equal(t, "btcusdt", (&BinanceAdapter{}).NormalizeSymbol("BTC/USDT"))
	assert.Equal(t, "XBT/USDT", wireName("BTC/USDT"))
	assert.Equal(t, "ETH/USDT", wireName("ETH/USDT"))
	assert.Equal(t, "BTC-USDT", productID("BTC/USDT"))
	assert.Equal(t, "BTC-USDT", instID("BTC/USDT"))
}

func TestCanonicalizeKrakenAsset(t *testing.T) {
	assert.Equal(t, "BTC", canonicalizeKrakenAsset("XXBT"))
	assert.Equal(t, "USD", canonicalizeKrakenAsset("ZUSD"))
	assert.Equal(t, "ETH", canonicalizeKrakenAsset("ETH"))
}
