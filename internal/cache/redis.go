package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const (
	scanCount   = 200
	deleteBatch = 500
	defaultTTL  = 24 * time.Hour
)

// RedisCache keeps JSON-encoded results in Redis with a fixed TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps client. A non-positive ttl falls back to one day.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL and returns a cache with its own client.
func NewRedisCacheFromURL(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "parse redis url")
	}
	return NewRedisCache(redis.NewClient(opts), ttl), nil
}

// Ping verifies connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "redis get %s", key)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, eris.Wrapf(err, "decode cached %s", key)
	}
	return true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "encode %s", key)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// InvalidateTenant implements Cache using SCAN + DEL so large tenants do not block the server.
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	pattern := tenantPattern(tenantID)
	iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()

	deleted := 0
	batch := make([]string, 0, deleteBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return eris.Wrapf(err, "redis del %s", pattern)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deleteBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, eris.Wrapf(err, "redis scan %s", pattern)
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
