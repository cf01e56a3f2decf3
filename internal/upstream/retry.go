package upstream

import (
	"context"
	"net/http"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of attempts per call.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the delay before the first retry; it doubles per attempt.
	DefaultBaseDelay = time.Second
)

// RetryPolicy bounds retries of transient upstream statuses.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable reports whether a status is transient. Nil means IsRetryableStatus.
	Retryable func(status int) bool
	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is 3 attempts with 1s then 2s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// NoRetry makes a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// IsRetryableStatus reports whether status is 429 or 503.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// Delay returns the wait after the given failed attempt (1-indexed):
// BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryable(status int) bool {
	if p.Retryable != nil {
		return p.Retryable(status)
	}
	return IsRetryableStatus(status)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
