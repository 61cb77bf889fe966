package models

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCache persists the model list to a local file, so a restart does not
// need an upstream fetch before serving /v1/models.
// Suitable for single-instance deployments.
type FileCache struct {
	mu       sync.RWMutex
	filePath string
}

// NewFileCache creates a file-backed cache at filePath.
func NewFileCache(filePath string) *FileCache {
	return &FileCache{filePath: filePath}
}

// Get retrieves the model list from the local file.
func (c *FileCache) Get(_ context.Context) (*CachedList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.filePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache file yet, not an error
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var list CachedList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}

	return &list, nil
}

// Set stores the model list to the local file.
func (c *FileCache) Set(_ context.Context, list *CachedList) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Close is a no-op for the file cache.
func (c *FileCache) Close() error {
	return nil
}
