package models

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"gridgate/internal/core"
)

// defaultOwner is reported for models the grid does not attribute.
const defaultOwner = "aipowergrid"

// Fetcher retrieves the raw model list from the grid.
// *grid.Client satisfies this.
type Fetcher interface {
	Models(ctx context.Context, modelType string) ([]byte, error)
}

// Registry serves the grid model list in the OpenAI shape, refreshing it at
// most once per TTL window per process.
type Registry struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration

	// refreshMu single-flights upstream fetches; concurrent callers wait
	// for the in-flight refresh instead of issuing their own.
	refreshMu sync.Mutex

	now func() time.Time
}

// NewRegistry creates a registry over the given fetcher and cache.
func NewRegistry(fetcher Fetcher, cache Cache, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Registry{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
	}
}

// List returns the model list, serving from cache within the TTL window.
// When a refresh fails and a stale list exists, the stale list is served.
func (r *Registry) List(ctx context.Context) (*core.ModelsResponse, error) {
	list, err := r.fresh(ctx)
	if err != nil {
		return nil, err
	}
	return &core.ModelsResponse{Object: "list", Data: list.Models}, nil
}

// Supports reports whether the grid currently advertises the model.
// Errors degrade to true so a registry outage never blocks submissions.
func (r *Registry) Supports(ctx context.Context, model string) bool {
	list, err := r.fresh(ctx)
	if err != nil {
		slog.Warn("model validation skipped, registry unavailable", "error", err)
		return true
	}
	for _, m := range list.Models {
		if m.ID == model {
			return true
		}
	}
	return false
}

// fresh returns a cached list within TTL, refreshing otherwise.
func (r *Registry) fresh(ctx context.Context) (*CachedList, error) {
	cached, err := r.cache.Get(ctx)
	if err != nil {
		slog.Warn("model cache read failed", "error", err)
	}
	if cached != nil && r.now().Sub(cached.UpdatedAt) < r.ttl {
		return cached, nil
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Re-check after acquiring the lock; another caller may have refreshed.
	cached, err = r.cache.Get(ctx)
	if err == nil && cached != nil && r.now().Sub(cached.UpdatedAt) < r.ttl {
		return cached, nil
	}

	refreshed, refreshErr := r.refresh(ctx)
	if refreshErr != nil {
		if cached != nil {
			slog.Warn("model refresh failed, serving stale list", "error", refreshErr, "age", r.now().Sub(cached.UpdatedAt))
			return cached, nil
		}
		return nil, refreshErr
	}
	return refreshed, nil
}

// refresh fetches text and image models, merges and reshapes them, and
// stores the result.
func (r *Registry) refresh(ctx context.Context) (*CachedList, error) {
	var raw []byte
	textRaw, err := r.fetcher.Models(ctx, "text")
	if err != nil {
		return nil, fmt.Errorf("fetch text models: %w", err)
	}
	raw = textRaw

	merged := transform(raw, r.now())

	if imageRaw, err := r.fetcher.Models(ctx, "image"); err == nil {
		merged = append(merged, transform(imageRaw, r.now())...)
	} else {
		slog.Warn("fetch image models failed", "error", err)
	}

	list := &CachedList{UpdatedAt: r.now(), Models: merged}
	if err := r.cache.Set(ctx, list); err != nil {
		slog.Warn("model cache write failed", "error", err)
	}
	return list, nil
}

// transform reshapes the grid's loosely-shaped model entries into the
// OpenAI model object. The identifier field has drifted across grid
// versions (id, model, name), so each is tried in order.
func transform(raw []byte, now time.Time) []core.Model {
	var out []core.Model
	gjson.ParseBytes(raw).ForEach(func(_, entry gjson.Result) bool {
		id := firstString(entry, "id", "model", "name")
		if id == "" {
			id = "unknown-model"
		}
		created := entry.Get("created").Int()
		if created == 0 {
			created = now.Unix()
		}
		owner := firstString(entry, "owned_by", "owner")
		if owner == "" {
			owner = defaultOwner
		}
		out = append(out, core.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: owner,
		})
		return true
	})
	return out
}

// firstString returns the first non-empty string among the named fields.
func firstString(entry gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := entry.Get(f).String(); v != "" {
			return v
		}
	}
	return ""
}
