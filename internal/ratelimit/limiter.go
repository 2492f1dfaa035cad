package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a single limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter answers whether one more request is allowed for the given key.
// Keys are caller-scoped (user id, IP); rate and burst are fixed per limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}
