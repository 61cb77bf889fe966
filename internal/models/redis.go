package models

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the key used to store the model list in redis.
	DefaultRedisKey = "gridgate:models"

	// DefaultRedisTTL ensures stale data eventually expires if the
	// application stops refreshing.
	DefaultRedisTTL = 24 * time.Hour
)

// RedisCache shares the model list across instances through redis.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a redis-backed cache from a connection URL.
func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis model cache connected", "key", DefaultRedisKey, "ttl", DefaultRedisTTL)

	return &RedisCache{
		client: client,
		key:    DefaultRedisKey,
		ttl:    DefaultRedisTTL,
	}, nil
}

// Get retrieves the model list from redis.
func (c *RedisCache) Get(ctx context.Context) (*CachedList, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // No cache yet, not an error
		}
		return nil, fmt.Errorf("failed to get model cache from redis: %w", err)
	}

	var list CachedList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse model cache from redis: %w", err)
	}

	return &list, nil
}

// Set stores the model list in redis.
func (c *RedisCache) Set(ctx context.Context, list *CachedList) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal model cache: %w", err)
	}

	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set model cache in redis: %w", err)
	}

	return nil
}

// Close closes the redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
