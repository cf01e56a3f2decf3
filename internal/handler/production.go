package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/production"
	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
)

// ProductionSource returns cached or fetched production data for a date range.
type ProductionSource interface {
	Get(ctx context.Context, start, end string) ([]byte, production.Result, error)
}

// ProductionHandler serves the trailing 12 months of production data.
type ProductionHandler struct {
	cache  ProductionSource
	logger *slog.Logger
	now    func() time.Time
}

// NewProductionHandler creates a new ProductionHandler.
func NewProductionHandler(cache ProductionSource, logger *slog.Logger) *ProductionHandler {
	return &ProductionHandler{
		cache:  cache,
		logger: logger.With("component", "handler.production"),
		now:    time.Now,
	}
}

// Get handles GET /api/monthly-production. The upstream payload is passed
// through unchanged and X-Cache reports which layer answered.
func (h *ProductionHandler) Get(w http.ResponseWriter, r *http.Request) {
	start, end := production.Window(h.now())

	data, result, err := h.cache.Get(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to fetch production data",
			"start", start,
			"end", end,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, dto.ProductionError{
			Error:   "Failed to fetch production data",
			Details: productionErrorDetail(err),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(result))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// productionErrorDetail describes err without upstream bodies or URLs.
func productionErrorDetail(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "upstream temporarily unavailable"
	case errors.Is(err, production.ErrInvalidPayload):
		return "upstream returned an invalid payload"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request timed out"
	}
	if status := upstream.StatusOf(err); status != 0 {
		return fmt.Sprintf("upstream returned status %d", status)
	}
	return "upstream request failed"
}
