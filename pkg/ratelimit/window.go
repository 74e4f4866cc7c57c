// Package ratelimit implements the per-client sliding-window counter used
// by the first pipeline gate. The window boundary moves continuously with
// each request, so there is no reset discontinuity at bucket edges.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Policy defines the window geometry.
type Policy struct {
	// Window is the sliding interval ending at "now".
	Window time.Duration
	// Max is the number of requests allowed inside one window.
	Max int
}

// WindowStore abstracts the storage for sliding-window state so a single
// instance can keep it in memory while multi-instance deployments share it
// through Redis.
type WindowStore interface {
	// Allow reports whether the client identified by key may proceed, and
	// records the request timestamp if so. Denial does not mutate the
	// window beyond pruning expired entries.
	Allow(ctx context.Context, key string, policy Policy) (bool, error)
}

// MemoryWindow is the in-process WindowStore. State lives for the process
// lifetime and is never persisted.
type MemoryWindow struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   func() time.Time
}

// NewMemoryWindow creates an empty in-process window store.
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{
		windows: make(map[string][]time.Time),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *MemoryWindow) WithClock(clock func() time.Time) *MemoryWindow {
	m.clock = clock
	return m
}

// Allow prunes expired entries for the key, then appends the current
// timestamp if the remaining count is under the cap. Prune-then-append is
// atomic with respect to concurrent requests sharing the key.
func (m *MemoryWindow) Allow(_ context.Context, key string, policy Policy) (bool, error) {
	now := m.clock()
	cutoff := now.Add(-policy.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.windows[key]
	live := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	if len(live) >= policy.Max {
		m.windows[key] = live
		return false, nil
	}

	m.windows[key] = append(live, now)
	return true, nil
}

// Len reports the current entry count for a key after pruning against the
// given window. Used by tests and the observability surface.
func (m *MemoryWindow) Len(key string, window time.Duration) int {
	cutoff := m.clock().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ts := range m.windows[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
