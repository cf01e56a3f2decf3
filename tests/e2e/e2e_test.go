//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kaancat/elportal-forside-design-sub009/internal/repository"
)

type trackClickResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ClickID string `json:"click_id"`
	} `json:"data"`
}

type dashboardResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Realtime struct {
			TodayClicks      int64 `json:"todayClicks"`
			TodayConversions int64 `json:"todayConversions"`
		} `json:"realtime"`
		Recent struct {
			Clicks []struct {
				ClickID string `json:"click_id"`
			} `json:"clicks"`
		} `json:"recent"`
	} `json:"data"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("TRACKING_BASE_URL", "http://localhost:8080")
	adminSecret := os.Getenv("ADMIN_SECRET")
	if adminSecret == "" {
		t.Fatalf("ADMIN_SECRET is required for e2e tests")
	}

	clickID := "dep_e2e_" + strings.ToLower(ulid.Make().String())
	ip := uniqueIP()

	var tracked trackClickResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/track-click", ip, "",
		map[string]any{"click_id": clickID, "partner_id": "e2e-partner"}, &tracked)
	if status != http.StatusOK || !tracked.Success || tracked.Data.ClickID != clickID {
		t.Fatalf("track click: status %d, body %+v", status, tracked)
	}

	before := dashboard(t, baseURL, adminSecret)

	assertPixel(t, fmt.Sprintf("%s/api/tracking/pixel?event_type=conversion&partner_id=e2e-partner&click_id=%s", baseURL, clickID))

	after := dashboard(t, baseURL, adminSecret)
	if after.Data.Realtime.TodayConversions < before.Data.Realtime.TodayConversions+1 {
		t.Errorf("todayConversions did not increase: %d -> %d",
			before.Data.Realtime.TodayConversions, after.Data.Realtime.TodayConversions)
	}

	if status := doJSON(t, http.MethodGet, baseURL+"/api/admin/dashboard", ip, "wrong", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("dashboard with wrong secret: status %d, want 401", status)
	}
}

func TestE2EClickRateLimiting(t *testing.T) {
	baseURL := envOrDefault("TRACKING_BASE_URL", "http://localhost:8080")
	limit := 100
	ip := uniqueIP()

	for i := 0; i < limit; i++ {
		body := map[string]any{"click_id": fmt.Sprintf("dep_rl_%d_%d", time.Now().UnixNano(), i), "partner_id": "e2e-partner"}
		if status := doJSON(t, http.MethodPost, baseURL+"/api/track-click", ip, "", body, nil); status != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, status)
		}
	}

	body := map[string]any{"click_id": "dep_rl_over", "partner_id": "e2e-partner"}
	if status := doJSON(t, http.MethodPost, baseURL+"/api/track-click", ip, "", body, nil); status != http.StatusTooManyRequests {
		t.Errorf("request %d: status %d, want 429", limit+1, status)
	}
}

func TestE2EProductionCache(t *testing.T) {
	if os.Getenv("E2E_UPSTREAM") == "" {
		t.Skip("E2E_UPSTREAM not set; skipping live Energi Data Service test")
	}
	baseURL := envOrDefault("TRACKING_BASE_URL", "http://localhost:8080")
	client := &http.Client{Timeout: 60 * time.Second}

	var bodies [][]byte
	var results []string
	for i := 0; i < 2; i++ {
		resp, err := client.Get(baseURL + "/api/monthly-production")
		if err != nil {
			t.Fatalf("GET monthly-production: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		bodies = append(bodies, body)
		results = append(results, resp.Header.Get("X-Cache"))
	}

	if results[1] != "HIT-MEMORY" {
		t.Errorf("second X-Cache = %q, want HIT-MEMORY", results[1])
	}
	if !bytes.Equal(bodies[0], bodies[1]) {
		t.Error("cached body differs from first response")
	}
}

func TestE2EArchive(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; archive disabled")
	}
	baseURL := envOrDefault("TRACKING_BASE_URL", "http://localhost:8080")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()
	archive := repository.NewClickArchive(repo)

	before, err := archive.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	body := map[string]any{"click_id": "dep_arch_" + strings.ToLower(ulid.Make().String()), "partner_id": "e2e-archive"}
	if status := doJSON(t, http.MethodPost, baseURL+"/api/track-click", uniqueIP(), "", body, nil); status != http.StatusOK {
		t.Fatalf("track click: status %d", status)
	}

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		n, err := archive.Count(ctx)
		if err == nil && n > before {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatal("click did not reach the archive")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// uniqueIP returns a TEST-NET-2 address so each run gets its own rate limit window.
func uniqueIP() string {
	n := time.Now().UnixNano()
	return fmt.Sprintf("198.51.%d.%d", (n>>8)%256, n%254+1)
}

func dashboard(t *testing.T, baseURL, secret string) dashboardResponse {
	t.Helper()
	var resp dashboardResponse
	if status := doJSON(t, http.MethodGet, baseURL+"/api/admin/dashboard", uniqueIP(), secret, nil, &resp); status != http.StatusOK {
		t.Fatalf("dashboard: status %d", status)
	}
	return resp
}

func assertPixel(t *testing.T, url string) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("pixel request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/gif" || len(body) != 43 {
		t.Fatalf("pixel: status %d, type %q, %d bytes", resp.StatusCode, resp.Header.Get("Content-Type"), len(body))
	}
}

func doJSON(t *testing.T, method, url, clientIP, secret string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	if strings.TrimSpace(secret) != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}
