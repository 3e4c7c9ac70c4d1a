package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckAllowsWhenUnderLimit(t *testing.T) {
	l := NewMemoryLimiter(fixedClock(time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)))
	allowed, remaining, retryAfter, err := l.Check(context.Background(), "workspace", "w1", "messages", 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(5), remaining)
	require.Zero(t, retryAfter)
}

func TestCheckNonPositiveLimitAlwaysAllows(t *testing.T) {
	l := NewMemoryLimiter(fixedClock(time.Now()))
	allowed, remaining, retryAfter, err := l.Check(context.Background(), "workspace", "w1", "messages", 0)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(-1), remaining)
	require.Zero(t, retryAfter)
}

// TestCheckDeniesWithRetryAfterAtHourBoundary is the §8 scenario: configure
// quota_messages_per_hour=2, record two messages in the same hour, then a
// third check must report allowed=false with retry_after_seconds equal to
// the seconds remaining until the next hour boundary.
func TestCheckDeniesWithRetryAfterAtHourBoundary(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 15, 0, 0, time.UTC)
	l := NewMemoryLimiter(fixedClock(now))
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "workspace", "w1", "messages", 1))
	require.NoError(t, l.Record(ctx, "workspace", "w1", "messages", 1))

	allowed, remaining, retryAfter, err := l.Check(ctx, "workspace", "w1", "messages", 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.InDelta(t, 45*60, retryAfter, 1)
}

func TestCheckIsScopedByResourceAndScopeID(t *testing.T) {
	l := NewMemoryLimiter(fixedClock(time.Now()))
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, "workspace", "w1", "messages", 5))

	allowed, remaining, _, err := l.Check(ctx, "workspace", "w2", "messages", 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(5), remaining)

	allowed, _, _, err = l.Check(ctx, "workspace", "w1", "tokens", 5)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCheckResetsAtNextHourBucket(t *testing.T) {
	hour1 := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	hour2 := time.Date(2026, 7, 29, 11, 5, 0, 0, time.UTC)

	var now time.Time
	l := NewMemoryLimiter(func() time.Time { return now })
	ctx := context.Background()

	now = hour1
	require.NoError(t, l.Record(ctx, "workspace", "w1", "messages", 2))
	allowed, _, _, err := l.Check(ctx, "workspace", "w1", "messages", 2)
	require.NoError(t, err)
	require.False(t, allowed)

	now = hour2
	allowed, remaining, _, err := l.Check(ctx, "workspace", "w1", "messages", 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(2), remaining)
}
