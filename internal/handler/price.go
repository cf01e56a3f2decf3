package handler

import (
	"net/http"
	"strconv"

	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
	"github.com/kaancat/elportal-forside-design-sub009/internal/pricing"
)

// PriceHandler serves price calculations.
type PriceHandler struct{}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler() *PriceHandler {
	return &PriceHandler{}
}

// Calculate handles GET /api/price-calculation.
// spot is required; markup, grid, consumption and subscription are optional.
func (h *PriceHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("spot") == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "spot is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	in := pricing.Input{AnnualConsumption: pricing.DefaultAnnualConsumption}
	params := []struct {
		name string
		dst  *float64
	}{
		{"spot", &in.SpotPrice},
		{"markup", &in.ProviderMarkup},
		{"consumption", &in.AnnualConsumption},
		{"subscription", &in.MonthlySubscription},
	}
	for _, p := range params {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeInvalidParameter(w, p.name)
			return
		}
		*p.dst = v
	}

	if raw := q.Get("grid"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeInvalidParameter(w, "grid")
			return
		}
		in.GridTariff = &v
	}

	breakdown, err := pricing.Calculate(in)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_PARAMETER",
		})
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

func writeInvalidParameter(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error: name + " must be a number",
		Code:  "INVALID_PARAMETER",
	})
}
