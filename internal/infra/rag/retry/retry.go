// Package retry classifies provider errors as transient or permanent and
// retries transient failures with exponential backoff and jitter,
// grounded on the backoff formula and structured logging style of the
// teacher's inbound HTTP retry middleware (internal/interface/http,
// removed — HTTP transport is out of scope here), re-targeted at outbound
// calls to embedding/LLM/storage providers.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Classification distinguishes retryable from non-retryable failures.
type Classification int

const (
	Permanent Classification = iota
	Transient
)

type statusCoder interface {
	StatusCode() int
}

// Classify inspects err and returns whether it is worth retrying.
func Classify(err error) Classification {
	if err == nil {
		return Permanent
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.StatusCode())
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"400", "401", "403", "404"} {
		if strings.Contains(msg, "status="+code) {
			return Permanent
		}
	}
	for _, code := range []string{"408", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, "status="+code) {
			return Transient
		}
	}
	if strings.Contains(msg, "unavailable") || strings.Contains(msg, "slow down") || strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") {
		return Transient
	}
	return Permanent
}

func classifyStatus(status int) Classification {
	switch {
	case status == http.StatusNotImplemented:
		return Permanent
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Transient
	case status >= 500:
		return Transient
	default:
		return Permanent
	}
}

// Config controls backoff behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OnRetry, if set, is invoked once per retried attempt (not the final,
	// non-retried failure), so callers can feed a metrics collector
	// without Do depending on any particular metrics library.
	OnRetry func(attempt int)
}

// DefaultConfig returns 3 attempts with a 200ms base delay capped at 5s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do calls fn, retrying transient failures with exponential backoff plus
// jitter up to cfg.MaxAttempts total attempts. It never retries once fn
// has already started streaming a response to the caller — that decision
// belongs to the caller, which should only invoke Do around the portion of
// work preceding the first emitted byte.
func Do(ctx context.Context, cfg Config, logger *slog.Logger, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if Classify(lastErr) == Permanent || attempt == cfg.MaxAttempts {
			return lastErr
		}
		delay := backoffDelay(cfg, attempt)
		logger.Warn("transient failure, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	base := cfg.BaseDelay * time.Duration(1<<(attempt-1))
	if base > cfg.MaxDelay {
		base = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base/2 + jitter
}
