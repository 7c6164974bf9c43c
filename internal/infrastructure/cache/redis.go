package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lending-ledger/internal/config"
)

// RedisCache backs the loan service's ledger-view cache. Entries carry a
// TTL so a missed invalidation can only serve stale data briefly.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With("component", "RedisCache"),
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.WarnContext(ctx, "Redis GET failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
