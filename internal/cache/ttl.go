// Package cache provides the bounded TTL cache shared by the candle
// collector, the sentiment engine and the scanner.
//
// Entries older than the TTL are never returned. When inserting a new key
// into a full cache, the entry with the oldest insertion time is evicted
// (oldest-first, not least-recently-used).
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Stats counts cache outcomes since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

// TTL is a mutex-guarded map with a time-to-live and a size bound.
// The zero value is not usable; call New.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[K]entry[V]
	stats    Stats
	now      func() time.Time

	// OnEvict is called (under the lock) when capacity pressure removes a key.
	OnEvict func(key K)
}

// New creates a cache. capacity < 1 is treated as 1.
func New[K comparable, V any](ttl time.Duration, capacity int) *TTL[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TTL[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]entry[V], capacity),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns a live entry. An expired entry is removed and reported as a miss.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		c.stats.Expired++
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Put stores value under key, evicting the oldest entry first when a new
// key would exceed capacity. Replacing an existing key never evicts.
func (c *TTL[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Delete removes key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until
// they are touched.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *TTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *TTL[K, V]) evictOldestLocked() {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if !found {
		return
	}
	delete(c.entries, oldestKey)
	c.stats.Evictions++
	if c.OnEvict != nil {
		c.OnEvict(oldestKey)
	}
}
