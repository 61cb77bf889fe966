package models

import (
	"context"
	"sync"
)

// MemoryCache is a process-local cache, the default backend.
type MemoryCache struct {
	mu   sync.RWMutex
	list *CachedList
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get returns the cached list, or nil if nothing has been stored yet.
func (c *MemoryCache) Get(_ context.Context) (*CachedList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list, nil
}

// Set stores the list.
func (c *MemoryCache) Set(_ context.Context, list *CachedList) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = list
	return nil
}

// Close is a no-op for the in-memory cache.
func (c *MemoryCache) Close() error {
	return nil
}
