package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-news-pipeline/config"
	"ai-news-pipeline/logger"
)

// KeyLatestRecords caches the feature-store read side; invalidated on
// every record completion.
const KeyLatestRecords = "records:latest"

// Cache is a thin JSON cache over redis. A nil *Cache is a valid no-op
// cache, so callers never branch on whether redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFromConfig connects to redis using the config section. Returns nil
// (the no-op cache) when no address is configured.
func NewFromConfig(ctx context.Context, cfg config.RedisConfig) *Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Warnf("redis unreachable at %s, running without cache: %v", cfg.Addr, err)
		return nil
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// GetJSON loads key into dest. Returns false on a miss or when the
// cache is disabled.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warnf("cache get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		logger.Log.Warnf("cache entry %s is corrupt, dropping: %v", key, err)
		c.client.Del(ctx, key)
		return false
	}
	return true
}

// SetJSON stores value under key with the configured TTL. Failures are
// logged, never surfaced: the cache is best-effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Log.Warnf("cache marshal for %s failed: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Log.Warnf("cache set %s failed: %v", key, err)
	}
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warnf("cache invalidate failed: %v", err)
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
