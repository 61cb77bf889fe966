package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process fixed-window limiter: a map keyed by API key with
// expired windows swept on every call. Suitable for single-instance
// deployments only; counters are not shared across processes.
type Local struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewLocal creates an in-process limiter.
func NewLocal(cfg Config) *Local {
	return &Local{
		windows: make(map[string]*window),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Allow consumes one slot from the caller's current window.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}

	if w.count >= l.cfg.Requests {
		return false, nil
	}
	w.count++
	return true, nil
}

// Close is a no-op for the local limiter.
func (l *Local) Close() error {
	return nil
}

// sweep drops windows older than the limit window. Called with mu held.
func (l *Local) sweep(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.cfg.Window {
			delete(l.windows, key)
		}
	}
}
