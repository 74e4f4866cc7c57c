package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaworks/intake/pkg/ratelimit"
)

func TestMemoryWindow_CapEnforced(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := ratelimit.NewMemoryWindow().WithClock(func() time.Time { return now })
	policy := ratelimit.Policy{Window: 5 * time.Minute, Max: 10}
	ctx := context.Background()

	// Exactly Max requests pass inside one window.
	for i := 0; i < policy.Max; i++ {
		allowed, err := w.Allow(ctx, "10.0.0.1", policy)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
		now = now.Add(time.Second)
	}

	// The (Max+1)-th is denied.
	allowed, err := w.Allow(ctx, "10.0.0.1", policy)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryWindow_SlidesContinuously(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := ratelimit.NewMemoryWindow().WithClock(func() time.Time { return now })
	policy := ratelimit.Policy{Window: 5 * time.Minute, Max: 2}
	ctx := context.Background()

	mustAllow(t, w, ctx, "c", policy)
	now = now.Add(time.Minute)
	mustAllow(t, w, ctx, "c", policy)

	allowed, err := w.Allow(ctx, "c", policy)
	require.NoError(t, err)
	assert.False(t, allowed)

	// One minute later the first entry slides out; exactly one slot opens.
	now = now.Add(4*time.Minute + time.Second)
	mustAllow(t, w, ctx, "c", policy)
	allowed, err = w.Allow(ctx, "c", policy)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryWindow_DenialDoesNotConsume(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := ratelimit.NewMemoryWindow().WithClock(func() time.Time { return now })
	policy := ratelimit.Policy{Window: 5 * time.Minute, Max: 1}
	ctx := context.Background()

	mustAllow(t, w, ctx, "c", policy)
	for i := 0; i < 5; i++ {
		allowed, err := w.Allow(ctx, "c", policy)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
	assert.Equal(t, 1, w.Len("c", policy.Window))
}

func TestMemoryWindow_KeysIsolated(t *testing.T) {
	w := ratelimit.NewMemoryWindow()
	policy := ratelimit.Policy{Window: 5 * time.Minute, Max: 1}
	ctx := context.Background()

	mustAllow(t, w, ctx, "10.0.0.1", policy)
	mustAllow(t, w, ctx, "10.0.0.2", policy)

	allowed, err := w.Allow(ctx, "10.0.0.1", policy)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryWindow_ConcurrentRequestsRespectCap(t *testing.T) {
	w := ratelimit.NewMemoryWindow()
	policy := ratelimit.Policy{Window: 5 * time.Minute, Max: 10}
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := w.Allow(ctx, "shared", policy)
			require.NoError(t, err)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, policy.Max, allowedCount)
}

func mustAllow(t *testing.T, w ratelimit.WindowStore, ctx context.Context, key string, policy ratelimit.Policy) {
	t.Helper()
	allowed, err := w.Allow(ctx, key, policy)
	require.NoError(t, err)
	require.True(t, allowed)
}
