// Package ratelimit provides the admission gate consulted before the
// adapter runs. Supports an in-process limiter for single-instance
// deployments and a redis-backed limiter for multi-instance ones.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a caller may run another generation request.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the caller identified by key is within its
	// request budget, consuming one slot when it is.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the limiter.
	Close() error
}

// Config holds the shared limiter settings.
type Config struct {
	// Requests is the number of requests allowed per window.
	Requests int
	// Window is the fixed window length.
	Window time.Duration
}
