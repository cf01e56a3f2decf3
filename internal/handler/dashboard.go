package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// MetricsSource assembles dashboard metrics.
type MetricsSource interface {
	Metrics(ctx context.Context) (*model.DashboardMetrics, error)
}

// DashboardHandler serves the admin dashboard. Authentication is applied by
// middleware.AdminAuth before it runs.
type DashboardHandler struct {
	source MetricsSource
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(source MetricsSource, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		source: source,
		logger: logger.With("component", "handler.dashboard"),
		now:    time.Now,
	}
}

// Get handles GET /api/admin/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.source.Metrics(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard metrics",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeTrackingError(w, http.StatusInternalServerError, "Failed to fetch dashboard metrics")
		return
	}

	writeJSON(w, http.StatusOK, dto.DashboardResponse{
		Success:   true,
		Data:      data,
		Timestamp: isoNow(h.now()),
	})
}
