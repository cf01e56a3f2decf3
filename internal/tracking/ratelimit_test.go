package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/testutil"
)

func TestRateLimiter_Boundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := testutil.NewRedisStore(t)
	limiter := NewRateLimiter(store, 0, 0)

	for i := 1; i <= 100; i++ {
		allowed, err := limiter.Check(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i, err)
		}
		if !allowed {
			t.Fatalf("request #%d should be allowed", i)
		}
	}

	allowed, err := limiter.Check(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Check() #101 error = %v", err)
	}
	if allowed {
		t.Error("request #101 should be rejected")
	}

	// Other IPs have their own window.
	if allowed, _ := limiter.Check(ctx, "203.0.113.8"); !allowed {
		t.Error("a different IP should be allowed")
	}
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := testutil.NewRedisStore(t)
	limiter := NewRateLimiter(store, 3, time.Minute)
	key := RateLimitKey("198.51.100.1")

	if _, err := limiter.Check(ctx, "198.51.100.1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("TTL after first request = %s, want 1m", ttl)
	}

	mr.FastForward(50 * time.Second)
	if _, err := limiter.Check(ctx, "198.51.100.1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if ttl := mr.TTL(key); ttl != 10*time.Second {
		t.Errorf("later requests must not extend the window, TTL = %s", ttl)
	}

	// Fill the remainder of the window, then cross the boundary: the
	// fixed window admits a second full burst immediately.
	if allowed, _ := limiter.Check(ctx, "198.51.100.1"); !allowed {
		t.Fatal("third request should be allowed")
	}
	if allowed, _ := limiter.Check(ctx, "198.51.100.1"); allowed {
		t.Fatal("fourth request should be rejected")
	}

	mr.FastForward(11 * time.Second)
	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Check(ctx, "198.51.100.1"); !allowed {
			t.Errorf("request %d in the new window should be allowed", i+1)
		}
	}

	count, err := limiter.Count(ctx, "198.51.100.1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}

func TestRateLimiter_FailOpen(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(testutil.FailingStore{}, 1, time.Minute)

	allowed, err := limiter.Check(context.Background(), "192.0.2.1")
	if !allowed {
		t.Error("limiter must allow requests when the store fails")
	}
	if !errors.Is(err, testutil.ErrStoreDown) {
		t.Errorf("Check() error = %v, want ErrStoreDown", err)
	}
}

func TestRateLimiter_CountMissing(t *testing.T) {
	t.Parallel()

	store, _ := testutil.NewRedisStore(t)
	limiter := NewRateLimiter(store, 0, 0)

	count, err := limiter.Count(context.Background(), "192.0.2.99")
	if err != nil || count != 0 {
		t.Errorf("Count() = %d, %v; want 0, nil", count, err)
	}
	if limiter.Limit() != DefaultClickLimit {
		t.Errorf("Limit() = %d, want %d", limiter.Limit(), DefaultClickLimit)
	}
}
