package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "medledger/internal/platform/redis"
	id "medledger/pkg/domain"
)

// RedisCache keeps verification results in Redis with a short TTL so
// multiple instances share one hot set.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(address id.Address) string {
	return "medledger:verify:" + string(address)
}

func (c *RedisCache) Get(ctx context.Context, address id.Address) (*VerifyResult, bool) {
	raw, err := c.client.Get(ctx, cacheKey(address)).Bytes()
	if err != nil {
		return nil, false
	}
	var result VerifyResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.WarnContext(ctx, "verify cache entry corrupt, dropping", "address", address, "error", err)
		c.client.Del(ctx, cacheKey(address))
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, address id.Address, result *VerifyResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(address), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "verify cache write failed", "address", address, "error", err)
	}
}
