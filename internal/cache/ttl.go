package cache

import (
	"sync"
	"time"
)

// Cache is a typed key/value store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

// NewTTLCache returns an in-memory cache with lazy expiry. Entries are evicted
// on read and during Set, so the map stays bounded by the working set.
func NewTTLCache[K comparable, V any]() Cache[K, V] {
	return NewTTLCacheWithNow[K, V](time.Now)
}

// NewTTLCacheWithNow uses the given time source, so tests can control expiry.
func NewTTLCacheWithNow[K comparable, V any](now func() time.Time) Cache[K, V] {
	return &ttlCache[K, V]{
		entries: make(map[K]entry[V]),
		now:     now,
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *ttlCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			count++
		}
	}
	return count
}
