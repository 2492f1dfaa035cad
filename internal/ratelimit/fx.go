package ratelimit

import (
	"github.com/globalping/backoffice/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// Adoption endpoints allow 20 requests per 30 minutes per user.
	adoptionBurst = 20
	adoptionRate  = float64(adoptionBurst) / (30 * 60)
)

type AdoptionLimiter struct {
	Limiter
}

func NewRedisClient(cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info("redis rate limiting enabled")
	return redis.NewClient(opts), nil
}

func NewAdoptionLimiter(client *redis.Client) AdoptionLimiter {
	if client != nil {
		return AdoptionLimiter{NewTokenBucket(client, adoptionRate, adoptionBurst)}
	}
	return AdoptionLimiter{NewMemoryBucket(adoptionRate, adoptionBurst)}
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewAdoptionLimiter),
)
