// Package pricestore is the concurrent ingestion sink for Ticks: latest
// value per (instrument, venue) plus a bounded history ring, staleness
// predicate and GC sweep, per spec.md §3/§4.2.
package pricestore

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

const shardCount = 32

// Store is sharded by instrument so the single-writer-per-key discipline
// from spec.md §5 stays cheap under many concurrent adapter goroutines:
// each shard has its own lock instead of one lock protecting every key.
type Store struct {
	history int
	shards  [shardCount]*shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[model.Key]*entry
}

type entry struct {
	latest  model.Tick
	history []model.Tick // oldest first, capacity-bounded ring
}

// New builds a Store whose history ring holds up to historySize ticks
// per key.
func New(historySize int) *Store {
	if historySize <= 0 {
		historySize = 100
	}
	s := &Store{history: historySize}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[model.Key]*entry)}
	}
	return s
}

func (s *Store) shardFor(i model.Instrument) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(i))
	return s.shards[h.Sum32()%shardCount]
}

// Put replaces the latest tick for (instrument, venue) and appends it to
// the history ring, evicting the oldest entry if at capacity. Rejects
// non-finite or non-positive prices per the InvalidTick error kind.
func (s *Store) Put(t model.Tick) bool {
	if !t.Valid() {
		return false
	}
	sh := s.shardFor(t.Instrument)
	key := model.Key{Instrument: t.Instrument, Venue: t.Venue}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{}
		sh.entries[key] = e
	}
	e.latest = t
	e.history = append(e.history, t)
	if len(e.history) > s.history {
		e.history = e.history[len(e.history)-s.history:]
	}
	return true
}

// Get returns the latest tick for (instrument, venue), if any.
func (s *Store) Get(i model.Instrument, v model.Venue) (model.Tick, bool) {
	sh := s.shardFor(i)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[model.Key{Instrument: i, Venue: v}]
	if !ok {
		return model.Tick{}, false
	}
	return e.latest, true
}

// PricesFor returns the latest tick from every venue that has ever
// reported this instrument, stale ones included — callers filter
// staleness themselves, per spec.md §4.2.
func (s *Store) PricesFor(i model.Instrument) []model.Tick {
	sh := s.shardFor(i)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var out []model.Tick
	for k, e := range sh.entries {
		if k.Instrument == i {
			out = append(out, e.latest)
		}
	}
	return out
}

// IsStale reports whether the key's latest tick is older than staleAfter
// as of now, or whether the key is entirely unknown (treated as stale).
func (s *Store) IsStale(i model.Instrument, v model.Venue, now time.Time, staleAfter time.Duration) bool {
	t, ok := s.Get(i, v)
	if !ok {
		return true
	}
	return now.Sub(t.IngestTime) > staleAfter
}

// History returns the retained ticks for (instrument, venue), oldest
// first.
func (s *Store) History(i model.Instrument, v model.Venue) []model.Tick {
	sh := s.shardFor(i)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[model.Key{Instrument: i, Venue: v}]
	if !ok {
		return nil
	}
	out := make([]model.Tick, len(e.history))
	copy(out, e.history)
	return out
}

// Sweep removes every key whose latest tick is older than dropAfter as
// of now. Returns the number of keys removed.
func (s *Store) Sweep(now time.Time, dropAfter time.Duration) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if now.Sub(e.latest.IngestTime) > dropAfter {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Size returns the total number of (instrument, venue) keys tracked,
// for metrics reporting.
func (s *Store) Size() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}
