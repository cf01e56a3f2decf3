package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
)

// Default click rate limit: 100 requests per IP per fixed minute.
const (
	DefaultClickLimit  = 100
	DefaultClickWindow = 60 * time.Second
)

// RateLimiter is a fixed-window per-IP counter. The window starts at the
// first request, so a burst straddling a window boundary can admit up to
// twice the limit.
type RateLimiter struct {
	store  kv.Store
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a limiter. Non-positive values take the defaults.
func NewRateLimiter(store kv.Store, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultClickLimit
	}
	if window <= 0 {
		window = DefaultClickWindow
	}
	return &RateLimiter{store: store, limit: limit, window: window}
}

// Check counts a request from clientIP. When the store fails it returns
// allowed=true together with the error; callers log it and proceed.
func (r *RateLimiter) Check(ctx context.Context, clientIP string) (bool, error) {
	key := RateLimitKey(clientIP)

	count, err := r.store.Incr(ctx, key)
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.store.Expire(ctx, key, r.window); err != nil {
			return true, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= r.limit, nil
}

// Count returns the requests seen in the current window for clientIP.
func (r *RateLimiter) Count(ctx context.Context, clientIP string) (int64, error) {
	raw, err := r.store.Get(ctx, RateLimitKey(clientIP))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// Limit returns the per-window cap.
func (r *RateLimiter) Limit() int64 {
	return r.limit
}
