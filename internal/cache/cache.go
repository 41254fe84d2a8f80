// Package cache provides a concurrent-safe in-process TTL cache used to
// memoize upstream reads across requests within one process instance.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a mutex-guarded map with per-instance TTL expiration. Expiry is
// checked lazily at read time; there is no background sweep and no capacity
// bound. A TTL of zero or less means entries never expire, which is used as
// a permanent memo (including explicit negative results).
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

type entry[T any] struct {
	value     T
	createdAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock overrides the wall clock, for TTL expiry tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) {
		c.now = now
	}
}

// New creates a Cache whose entries expire ttl after being set.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached value. An entry older than the TTL is deleted and
// reported absent, never returned stale.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero T
		return zero, false
	}

	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)
		var zero T
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores a value under key, replacing any prior entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, createdAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}
