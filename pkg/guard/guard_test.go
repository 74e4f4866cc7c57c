package guard_test

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thermaworks/intake/pkg/guard"
)

func TestOriginGuard_EmptyOriginAccepted(t *testing.T) {
	g := guard.NewOriginGuard([]string{"https://forms.example.com"})
	assert.True(t, g.Check(""))
}

func TestOriginGuard_AllowListEnforced(t *testing.T) {
	g := guard.NewOriginGuard([]string{"https://forms.example.com", "http://localhost:3000"})

	assert.True(t, g.Check("https://forms.example.com"))
	assert.True(t, g.Check("http://localhost:3000"))
	assert.False(t, g.Check("https://evil.example.com"))
	assert.False(t, g.Check("https://forms.example.com.evil.com"))
}

func TestOriginGuard_EmptyListAllowsAll(t *testing.T) {
	g := guard.NewOriginGuard(nil)
	assert.True(t, g.Check("https://anywhere.example.com"))
}

func TestCheckCSRFShape(t *testing.T) {
	valid := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	assert.Len(t, valid, 64)
	assert.True(t, guard.CheckCSRFShape(valid))

	cases := map[string]string{
		"empty":         "",
		"too short":     valid[:63],
		"too long":      valid + "0",
		"uppercase hex": "ABCDEF6789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		"non-hex rune":  "z123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, guard.CheckCSRFShape(token))
		})
	}
}

func TestReplayGuard_WithinTolerance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := guard.NewReplayGuard(5 * time.Minute).WithClock(func() time.Time { return now })

	assert.True(t, g.Check(strconv.FormatInt(now.Unix(), 10)))
	assert.True(t, g.Check(strconv.FormatInt(now.Unix()-299, 10)))
	assert.True(t, g.Check(strconv.FormatInt(now.Unix()+300, 10)))
}

func TestReplayGuard_StaleOrFutureRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := guard.NewReplayGuard(5 * time.Minute).WithClock(func() time.Time { return now })

	assert.False(t, g.Check(strconv.FormatInt(now.Unix()-301, 10)))
	assert.False(t, g.Check(strconv.FormatInt(now.Unix()+301, 10)))
}

func TestReplayGuard_ExtremeTimestampsRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := guard.NewReplayGuard(5 * time.Minute).WithClock(func() time.Time { return now })

	// Skews whose second-to-nanosecond conversion would wrap int64. The
	// first lands a hair past math.MaxInt64 nanoseconds; a naive Duration
	// comparison wraps it back inside the tolerance.
	assert.False(t, g.Check(strconv.FormatInt(now.Unix()-18_446_744_074, 10)))
	assert.False(t, g.Check(strconv.FormatInt(now.Unix()+18_446_744_074, 10)))
	assert.False(t, g.Check(strconv.FormatInt(math.MinInt64, 10)))
	assert.False(t, g.Check(strconv.FormatInt(math.MaxInt64, 10)))
	assert.False(t, g.Check("0"))
}

func TestReplayGuard_MalformedTimestampRejected(t *testing.T) {
	g := guard.NewReplayGuard(5 * time.Minute)

	assert.False(t, g.Check(""))
	assert.False(t, g.Check("not-a-number"))
	assert.False(t, g.Check("1700000000.5"))
}
