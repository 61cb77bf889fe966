package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter counters in a shared redis instance.
const keyPrefix = "gridgate:ratelimit:"

// Redis is a fixed-window limiter backed by a shared redis counter with
// atomic increment-and-expire semantics. Suitable for multi-instance
// deployments behind a load balancer.
type Redis struct {
	client *redis.Client
	cfg    Config
}

// NewRedis creates a redis-backed limiter from a connection URL
// (e.g. "redis://localhost:6379" or "redis://:password@host:6379/0").
func NewRedis(url string, cfg Config) (*Redis, error) {
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

	slog.Info("redis rate limiter connected", "requests", cfg.Requests, "window", cfg.Window)

	return &Redis{client: client, cfg: cfg}, nil
}

// Allow increments the caller's window counter, setting the expiry when the
// window opens. INCR and EXPIRE run in one pipeline so the counter cannot
// be left without a TTL.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := keyPrefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit increment: %w", err)
	}

	return incr.Val() <= int64(r.cfg.Requests), nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
