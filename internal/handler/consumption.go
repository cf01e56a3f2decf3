package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/eloverblik"
	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
	"github.com/kaancat/elportal-forside-design-sub009/internal/validation"
)

// ConsumptionClient fetches metering data from Eloverblik.
type ConsumptionClient interface {
	CustomerConsumption(ctx context.Context, req eloverblik.ConsumptionRequest) (*eloverblik.Result, error)
	ThirdPartyConsumption(ctx context.Context, req eloverblik.ThirdPartyRequest) (*eloverblik.Result, error)
}

// ConsumptionHandler proxies consumption queries to Eloverblik.
type ConsumptionHandler struct {
	client ConsumptionClient
	logger *slog.Logger
}

// NewConsumptionHandler creates a new ConsumptionHandler.
func NewConsumptionHandler(client ConsumptionClient, logger *slog.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{
		client: client,
		logger: logger.With("component", "handler.consumption"),
	}
}

// Customer handles POST /api/eloverblik/get-consumption.
func (h *ConsumptionHandler) Customer(w http.ResponseWriter, r *http.Request) {
	var req eloverblik.ConsumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	res, err := h.client.CustomerConsumption(r.Context(), req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ThirdParty handles POST /api/eloverblik/thirdparty/get-customer-consumption.
func (h *ConsumptionHandler) ThirdParty(w http.ResponseWriter, r *http.Request) {
	var req eloverblik.ThirdPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	res, err := h.client.ThirdPartyConsumption(r.Context(), req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ConsumptionHandler) writeValidationError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request", dto.ToValidationErrors(verrs))
		return
	}
	if errors.Is(err, eloverblik.ErrDateRange) {
		h.writeError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error(), nil)
		return
	}
	h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request", nil)
}

// writeUpstreamError maps upstream failures. 401, 429 and 400 keep their
// status with a hint; everything else is a 502.
func (h *ConsumptionHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, eloverblik.ErrNotConfigured) {
		h.logger.Error("third-party consumption requested without refresh token")
		h.writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "Third-party access is not configured", nil)
		return
	}

	h.logger.Warn("eloverblik request failed",
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to fetch consumption data", nil)
		return
	}

	switch ue.Status {
	case http.StatusUnauthorized:
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{
			Error: "Eloverblik rejected the refresh token",
			Code:  "UPSTREAM_UNAUTHORIZED",
			Hint:  "The refresh token is invalid or expired. Create a new token on eloverblik.dk.",
		})
	case http.StatusTooManyRequests:
		writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
			Error: "Eloverblik rate limit reached",
			Code:  "UPSTREAM_RATE_LIMITED",
			Hint:  "Too many requests to Eloverblik. Wait a minute and try again.",
		})
	case http.StatusBadRequest:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Eloverblik rejected the request",
			Code:    "UPSTREAM_BAD_REQUEST",
			Hint:    "Check the metering point IDs and the date range.",
			Details: ue.Body,
		})
	default:
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to fetch consumption data", nil)
	}
}

func (h *ConsumptionHandler) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
