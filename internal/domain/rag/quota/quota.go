// Package quota implements hourly-bucketed rate limiting for messages,
// tokens, and uploads, keyed by (scope type, scope id, resource, hour).
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter checks and records resource consumption against hourly buckets.
type Limiter interface {
	// Check reports whether scope's recorded use of resource in the
	// current hour is still below limit. When not allowed,
	// retryAfterSeconds is the time until the next hour boundary.
	Check(ctx context.Context, scopeType, scopeID, resource string, limit int64) (allowed bool, remaining int64, retryAfterSeconds int64, err error)
	// Record adds amount to the current hour's bucket for scope/resource.
	Record(ctx context.Context, scopeType, scopeID, resource string, amount int64) error
}

// MemoryLimiter is a single-process, mutex-guarded limiter. It is suitable
// for tests and single-instance deployments only; it does not coordinate
// across processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]int64
	now     func() time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter. now defaults to time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{buckets: make(map[string]int64), now: now}
}

func bucketKey(scopeType, scopeID, resource string, hourFloor time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", scopeType, scopeID, resource, hourFloor.Unix())
}

func hourFloor(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

func (l *MemoryLimiter) Check(_ context.Context, scopeType, scopeID, resource string, limit int64) (bool, int64, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	key := bucketKey(scopeType, scopeID, resource, hourFloor(now))
	used := l.buckets[key]
	if limit <= 0 {
		return true, -1, 0, nil
	}
	if used >= limit {
		return false, 0, retryAfterSeconds(now), nil
	}
	return true, limit - used, 0, nil
}

// retryAfterSeconds computes the time until the next hour boundary.
func retryAfterSeconds(now time.Time) int64 {
	return int64(hourFloor(now).Add(time.Hour).Sub(now).Seconds())
}

func (l *MemoryLimiter) Record(_ context.Context, scopeType, scopeID, resource string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := bucketKey(scopeType, scopeID, resource, hourFloor(l.now()))
	l.buckets[key] += amount
	return nil
}
