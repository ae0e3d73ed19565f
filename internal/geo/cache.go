package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

// RedisCache keeps resolved locations in Redis with a TTL. Redis failures
// degrade to cache misses.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache builds a cache.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(ip string) string {
	return "geo:" + ip
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, ip string) (*domain.Location, bool) {
	data, err := c.client.Get(ctx, cacheKey(ip)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("geo cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var loc domain.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, false
	}
	return &loc, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, ip string, loc domain.Location) {
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(ip), data, c.ttl).Err(); err != nil {
		c.logger.Debug("geo cache set failed", zap.Error(err))
	}
}
