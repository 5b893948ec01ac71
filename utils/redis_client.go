package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edulearn/rewards/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// NewRedisClient builds a client for the configured Redis, or returns nil when RedisHost is empty.
// The client is returned even if the first ping fails; cache reads then miss and notifications are dropped.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		// cache and pub/sub calls sit on the request path; fail fast rather than queue
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolTimeout:  time.Second,
		MaxRetries:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		L().Warn("redis ping failed", zap.String("addr", rc.Options().Addr), zap.Error(err))
	}
	return rc
}

// GetRedis returns the process-wide client built from config.Get(); nil means Redis is disabled.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		redisClient = NewRedisClient(config.Get())
	})
	return redisClient
}

// CloseRedis releases the shared client. Safe to call when Redis is disabled.
func CloseRedis() {
	if redisClient == nil {
		return
	}
	if err := redisClient.Close(); err != nil {
		L().Warn("redis close failed", zap.Error(err))
	}
}
