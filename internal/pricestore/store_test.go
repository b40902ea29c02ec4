package pricestore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New(100)
	tk := model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 100, IngestTime: time.Now()}
	require.True(t, s.Put(tk))

	got, ok := s.Get(tk.Instrument, tk.Venue)
	require.True(t, ok)
	assert.Equal(t, tk, got)
}

func TestPutRejectsInvalidPrice(t *testing.T) {
	s := New(10)
	assert.False(t, s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 0}))
	assert.False(t, s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: -5}))
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	s := New(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Put(model.Tick{
			Instrument: "BTC/USDT", Venue: model.VenueBinance,
			Price: float64(100 + i), IngestTime: base.Add(time.Duration(i) * time.Second),
		})
	}
	hist := s.History("BTC/USDT", model.VenueBinance)
	require.Len(t, hist, 3)
	assert.Equal(t, 102.0, hist[0].Price)
	assert.Equal(t, 104.0, hist[2].Price)
}

func TestIdenticalPutsAppendEachTime(t *testing.T) {
	s := New(10)
	tk := model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 100, IngestTime: time.Now()}
	s.Put(tk)
	s.Put(tk)
	assert.Len(t, s.History(tk.Instrument, tk.Venue), 2)
}

func TestStalenessBoundary(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 100, IngestTime: now})

	assert.False(t, s.IsStale("BTC/USDT", model.VenueBinance, now.Add(60*time.Second-time.Millisecond), 60*time.Second))
	assert.True(t, s.IsStale("BTC/USDT", model.VenueBinance, now.Add(60*time.Second+time.Millisecond), 60*time.Second))
}

func TestIsStaleUnknownKey(t *testing.T) {
	s := New(10)
	assert.True(t, s.IsStale("ETH/USDT", model.VenueKraken, time.Now(), time.Minute))
}

func TestPricesForReturnsAllVenues(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 100, IngestTime: now})
	s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueKraken, Price: 101, IngestTime: now})
	s.Put(model.Tick{Instrument: "ETH/USDT", Venue: model.VenueBinance, Price: 2000, IngestTime: now})

	prices := s.PricesFor("BTC/USDT")
	assert.Len(t, prices, 2)
}

func TestSweepRemovesDroppedKeys(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Put(model.Tick{Instrument: "BTC/USDT", Venue: model.VenueBinance, Price: 100, IngestTime: now.Add(-10 * time.Minute)})
	s.Put(model.Tick{Instrument: "ETH/USDT", Venue: model.VenueBinance, Price: 2000, IngestTime: now})

	removed := s.Sweep(now, 5*time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())
}

func TestConcurrentPutsAreRaceFree(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	n := 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			s.Put(model.Tick{
				Instrument: "BTC/USDT", Venue: model.VenueBinance,
				Price: float64(100 + i), IngestTime: time.Now(),
			})
		}(i)
	}
	wg.Wait()
	_, ok := s.Get("BTC/USDT", model.VenueBinance)
	assert.True(t, ok)
}
