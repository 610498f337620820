package challenge

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const requestKeyPrefix = "challenge:req:"

// RequestCache is a best-effort presence cache answering "does this player
// have an active open challenge". Entries expire after the challenge max
// age, so a miss never proves the authoritative row is gone — callers must
// re-check the store before treating absence as fact.
type RequestCache interface {
	Set(ctx context.Context, playerID string) error
	Has(ctx context.Context, playerID string) (bool, error)
	Delete(ctx context.Context, playerID string) error
}

// RedisRequestCache stores one TTL-bounded marker key per player.
type RedisRequestCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRequestCache(rdb *redis.Client, maxAge time.Duration) *RedisRequestCache {
	return &RedisRequestCache{rdb: rdb, ttl: maxAge}
}

// Set inserts (or refreshes) the presence marker. Overwriting an existing
// marker is fine; the operation is idempotent.
func (c *RedisRequestCache) Set(ctx context.Context, playerID string) error {
	return c.rdb.Set(ctx, requestKeyPrefix+playerID, "1", c.ttl).Err()
}

func (c *RedisRequestCache) Has(ctx context.Context, playerID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, requestKeyPrefix+playerID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisRequestCache) Delete(ctx context.Context, playerID string) error {
	return c.rdb.Del(ctx, requestKeyPrefix+playerID).Err()
}
