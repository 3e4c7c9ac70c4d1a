// Package quota provides a Valkey-backed implementation of
// rag/quota.Limiter using atomic INCRBY plus an expiry pinned to the next
// hour boundary, grounded on the valkey GET/SET/TTL pattern the teacher
// uses for its FAQ answer cache.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	domquota "github.com/saintwyss/rag-corp-sub003/internal/domain/rag/quota"
)

// ValkeyLimiter implements domquota.Limiter against a Valkey/Redis server.
type ValkeyLimiter struct {
	client valkey.Client
	prefix string
}

// NewValkeyLimiter constructs a ValkeyLimiter.
func NewValkeyLimiter(client valkey.Client, prefix string) *ValkeyLimiter {
	if prefix == "" {
		prefix = "quota"
	}
	return &ValkeyLimiter{client: client, prefix: prefix}
}

func (l *ValkeyLimiter) key(scopeType, scopeID, resource string) string {
	hour := time.Now().Truncate(time.Hour).Unix()
	return fmt.Sprintf("%s:%s:%s:%s:%d", l.prefix, scopeType, scopeID, resource, hour)
}

func (l *ValkeyLimiter) Check(ctx context.Context, scopeType, scopeID, resource string, limit int64) (bool, int64, int64, error) {
	if limit <= 0 {
		return true, -1, 0, nil
	}
	resp := l.client.Do(ctx, l.client.B().Get().Key(l.key(scopeType, scopeID, resource)).Build())
	used, err := resp.ToInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return true, limit, 0, nil
		}
		return false, 0, 0, err
	}
	if used >= limit {
		return false, 0, retryAfterSeconds(time.Now()), nil
	}
	return true, limit - used, 0, nil
}

// retryAfterSeconds computes the time until the next hour boundary.
func retryAfterSeconds(now time.Time) int64 {
	return int64(now.Truncate(time.Hour).Add(time.Hour).Sub(now).Seconds())
}

func (l *ValkeyLimiter) Record(ctx context.Context, scopeType, scopeID, resource string, amount int64) error {
	key := l.key(scopeType, scopeID, resource)
	if err := l.client.Do(ctx, l.client.B().Incrby().Key(key).Increment(amount).Build()).Error(); err != nil {
		return err
	}
	nextHour := time.Now().Truncate(time.Hour).Add(time.Hour)
	return l.client.Do(ctx, l.client.B().Expireat().Key(key).Timestamp(nextHour.Unix()).Build()).Error()
}

var _ domquota.Limiter = (*ValkeyLimiter)(nil)
