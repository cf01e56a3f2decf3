package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/production"
	"github.com/kaancat/elportal-forside-design-sub009/internal/testutil"
	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
)

var productionNow = time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)

// newProductionStack wires handler, cache and client against a fake upstream.
func newProductionStack(t *testing.T, upstreamHandler http.HandlerFunc) (*ProductionHandler, *[]time.Duration) {
	t.Helper()

	srv := httptest.NewServer(upstreamHandler)
	t.Cleanup(srv.Close)

	var sleeps []time.Duration
	logger := testutil.DiscardLogger()
	caller := upstream.NewCaller(production.ServiceName, logger, nil)
	caller.Retry.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	store, _ := testutil.NewRedisStore(t)
	client := production.NewClient(srv.URL, caller, logger)
	cache := production.NewCache(store, client, production.DefaultTTL, logger, nil)

	h := NewProductionHandler(cache, logger)
	h.now = func() time.Time { return productionNow }
	return h, &sleeps
}

func getProduction(h *ProductionHandler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/monthly-production", nil))
	return rec
}

func TestProductionHandler_MissThenMemoryHit(t *testing.T) {
	t.Parallel()

	const payload = `{"total":2,"records":[{"HourDK":"2024-05-01T00:00:00"}]}`
	var calls int32
	h, _ := newProductionStack(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("start") != "2023-05-10" || r.URL.Query().Get("end") != "2024-05-10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(payload))
	})

	first := getProduction(h)
	second := getProduction(h)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	if got := second.Header().Get("X-Cache"); got != "HIT-MEMORY" {
		t.Errorf("second X-Cache = %q, want HIT-MEMORY", got)
	}
	if first.Body.String() != payload || second.Body.String() != payload {
		t.Errorf("bodies differ from upstream payload: %q / %q", first.Body.String(), second.Body.String())
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}

func TestProductionHandler_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int32
	h, sleeps := newProductionStack(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	rec := getProduction(h)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if calls != 3 {
		t.Errorf("upstream calls = %d, want 3", calls)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Errorf("backoff = %v, want [1s 2s]", *sleeps)
	}
}

func TestProductionHandler_UpstreamFailure(t *testing.T) {
	t.Parallel()

	h, _ := newProductionStack(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "secret internal trace", http.StatusInternalServerError)
	})

	rec := getProduction(h)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error == "" || body.Details != "upstream returned status 500" {
		t.Errorf("body = %+v", body)
	}
}

type kvOnlySource struct{}

func (kvOnlySource) Get(context.Context, string, string) ([]byte, production.Result, error) {
	return []byte(`{"records":[1]}`), production.HitKV, nil
}

func TestProductionHandler_ReportsKVHit(t *testing.T) {
	t.Parallel()

	h := NewProductionHandler(kvOnlySource{}, testutil.DiscardLogger())
	rec := getProduction(h)

	if got := rec.Header().Get("X-Cache"); got != "HIT-KV" {
		t.Errorf("X-Cache = %q, want HIT-KV", got)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}
