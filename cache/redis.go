package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
)

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a cache shared across processes through redis.
func NewRedis(cfg config.RedisConfig, ttl time.Duration) (Cache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &redisCache{client: client, prefix: cfg.KeyPrefix, ttl: ttl}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("cache: redis get %s: %v", key, err)
		}
		return "", false
	}
	return v, true
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		logger.Warnf("cache: redis set %s: %v", key, err)
	}
}

func (c *redisCache) Purge(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warnf("cache: redis purge: %v", err)
	}
}

func (c *redisCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis cache: %w", err)
	}
	return nil
}
