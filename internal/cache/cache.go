// Package cache memoizes venue catalog HTTP responses. It is an ambient
// input cache, not core state: the opportunity engine, price store and
// active-opportunity map never touch it, keeping spec.md's "all state is
// in-memory, no persisted format" invariant intact for the core proper.
package cache

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache is a small byte-oriented TTL cache, deliberately narrow so either
// backend below can satisfy it.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

// NewAuto returns a Redis-backed cache when addr is non-empty, otherwise
// an in-process TTL map. Catalog memoization works identically either
// way; Redis only helps when several detector instances share one
// catalog cache.
func NewAuto(addr string) Cache {
	if addr != "" {
		return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewMemory()
}

type memoryEntry struct {
	b   []byte
	exp time.Time
}

type memory struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

// NewMemory returns an in-process TTL cache.
func NewMemory() Cache {
	return &memory{m: make(map[string]memoryEntry)}
}

func (c *memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisCache struct{ r *redis.Client }

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}
