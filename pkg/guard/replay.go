package guard

import (
	"strconv"
	"time"
)

// ReplayGuard rejects requests whose client-declared timestamp is too far
// from server time. It bounds how long a captured envelope stays valid; it
// does not by itself detect replays inside the tolerance window (see
// NonceCache).
type ReplayGuard struct {
	tolerance time.Duration
	clock     func() time.Time
}

// NewReplayGuard creates a guard with the given tolerance window.
func NewReplayGuard(tolerance time.Duration) *ReplayGuard {
	return &ReplayGuard{tolerance: tolerance, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (g *ReplayGuard) WithClock(clock func() time.Time) *ReplayGuard {
	g.clock = clock
	return g
}

// Check parses the timestamp as integer epoch seconds and verifies
// |serverNow - clientTimestamp| is within the tolerance. Parse failure is
// a rejection. The comparison stays in whole seconds: converting an
// attacker-chosen skew to a Duration could overflow int64 and wrap a huge
// skew back inside the tolerance.
func (g *ReplayGuard) Check(timestampText string) bool {
	ts, err := strconv.ParseInt(timestampText, 10, 64)
	if err != nil {
		return false
	}
	skew := g.clock().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew < 0 {
		// |math.MinInt64| is not representable.
		return false
	}
	return skew <= int64(g.tolerance/time.Second)
}
