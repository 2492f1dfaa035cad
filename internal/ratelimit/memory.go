package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryBucket is an in-process token bucket. Correct only for single-instance
// deployments; multi-instance setups must use the redis bucket instead.
type MemoryBucket struct {
	mu      sync.Mutex
	buckets map[string]*memoryEntry
	rate    float64
	burst   int
	now     func() time.Time
}

type memoryEntry struct {
	tokens float64
	ts     time.Time
}

func NewMemoryBucket(rate float64, burst int) *MemoryBucket {
	return &MemoryBucket{
		buckets: make(map[string]*memoryEntry),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

func (m *MemoryBucket) Allow(_ context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictStale(now)

	e, ok := m.buckets[key]
	if !ok {
		e = &memoryEntry{tokens: float64(m.burst), ts: now}
		m.buckets[key] = e
	} else {
		delta := now.Sub(e.ts).Seconds()
		if delta < 0 {
			delta = 0
		}
		e.tokens = minFloat(float64(m.burst), e.tokens+delta*m.rate)
		e.ts = now
	}

	res := &Result{Limit: m.burst}
	if e.tokens >= 1 {
		e.tokens--
		res.Allowed = true
	} else if needed := 1.0 - e.tokens; needed > 0 {
		res.RetryAfter = time.Duration(needed / m.rate * float64(time.Second))
	}
	res.Remaining = int(e.tokens)
	return res, nil
}

func (m *MemoryBucket) evictStale(now time.Time) {
	ttl := bucketTTL(m.rate, m.burst)
	for key, e := range m.buckets {
		if now.Sub(e.ts) > ttl {
			delete(m.buckets, key)
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
