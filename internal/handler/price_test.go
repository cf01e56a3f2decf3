package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaancat/elportal-forside-design-sub009/internal/pricing"
)

func TestPriceHandler_Calculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPrice  float64
	}{
		{"defaults", "spot=0.50&markup=0.05", http.StatusOK, 2.0375},
		{"explicit grid", "spot=1&grid=0.4&consumption=1000&subscription=29", http.StatusOK, 2.8375},
		{"missing spot", "markup=0.05", http.StatusBadRequest, 0},
		{"non numeric", "spot=cheap", http.StatusBadRequest, 0},
		{"non numeric grid", "spot=1&grid=x", http.StatusBadRequest, 0},
		{"negative consumption", "spot=1&consumption=-5", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			NewPriceHandler().Calculate(rec, httptest.NewRequest(http.MethodGet, "/api/price-calculation?"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var b pricing.Breakdown
			if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if math.Abs(b.PricePerKWh-tt.wantPrice) > 1e-9 {
				t.Errorf("pricePerKwh = %v, want %v", b.PricePerKWh, tt.wantPrice)
			}
		})
	}
}
