package guard

import (
	"sync"
	"time"
)

// NonceCache remembers signed nonces for the replay tolerance window.
//
// The envelope signature covers a nonce, but the baseline protocol never
// deduplicates it, so a captured envelope can be resubmitted verbatim
// until the timestamp ages out. Enabling this cache closes that gap:
// entries expire with the same TTL as the replay tolerance, so a nonce is
// remembered exactly as long as its envelope could still pass the replay
// gate.
type NonceCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	nonces    map[string]time.Time
	lastSweep time.Time
	clock     func() time.Time
}

// NewNonceCache creates a cache whose entries live for ttl.
func NewNonceCache(ttl time.Duration) *NonceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NonceCache{
		ttl:    ttl,
		nonces: make(map[string]time.Time),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (c *NonceCache) WithClock(clock func() time.Time) *NonceCache {
	c.clock = clock
	return c
}

// Seen reports whether the nonce is live in the cache. It never records:
// a nonce is consumed with Remember only once its submission is stored, so
// a rejected request (failed validation, storage error) can be corrected
// and resubmitted under the same nonce.
func (c *NonceCache) Seen(nonce string) bool {
	if nonce == "" {
		return false
	}
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > time.Minute {
		c.sweepLocked(now)
		c.lastSweep = now
	}

	expiry, ok := c.nonces[nonce]
	return ok && expiry.After(now)
}

// Remember marks the nonce as consumed for the TTL. An empty nonce is
// never recorded.
func (c *NonceCache) Remember(nonce string) {
	if nonce == "" {
		return
	}
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[nonce] = now.Add(c.ttl)
}

func (c *NonceCache) sweepLocked(now time.Time) {
	for nonce, expiry := range c.nonces {
		if !expiry.After(now) {
			delete(c.nonces, nonce)
		}
	}
}

// Size reports the live entry count, for tests.
func (c *NonceCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nonces)
}
