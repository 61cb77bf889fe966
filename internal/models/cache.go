// Package models maintains the grid model registry: fetch-and-reshape of the
// grid's model list into the OpenAI models shape, behind a TTL cache.
// Supports in-memory, local-file and redis cache backends.
package models

import (
	"context"
	"time"

	"gridgate/internal/core"
)

// CachedList is the cached model list with its refresh timestamp.
type CachedList struct {
	UpdatedAt time.Time    `json:"updated_at"`
	Models    []core.Model `json:"models"`
}

// Cache defines the interface for model list storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the cached model list.
	// Returns nil, nil if no cache exists yet.
	Get(ctx context.Context) (*CachedList, error)

	// Set stores the model list.
	Set(ctx context.Context, list *CachedList) error

	// Close releases any resources held by the cache.
	Close() error
}
