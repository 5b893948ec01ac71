package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Minute
	cacheOpTimeout  = 2 * time.Second
)

// RedisCache stores JSON snapshots in Redis. All failures are logged and treated as misses.
type RedisCache struct {
	rc *redis.Client
}

func NewRedisCache(rc *redis.Client) *RedisCache {
	return &RedisCache{rc: rc}
}

// GetJSON loads key into v and reports whether it was found.
func (c *RedisCache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && Sugar != nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache decode failed key=%s err=%v", key, err)
		}
		return false
	}
	return true
}

// SetJSON marshals v and stores it with ttl.
func (c *RedisCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidatePrefix deletes keys that match the given prefix using SCAN.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			if Sugar != nil {
				Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
			}
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}
