package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/validation"
)

var errEmptyBody = errors.New("empty body")

// ClickRecorder stores validated clicks.
type ClickRecorder interface {
	Record(ctx context.Context, event model.ClickEvent) error
	Now() int64
}

// RateChecker reports whether a client may proceed. A non-nil error comes
// with allowed=true; the caller decides to proceed anyway.
type RateChecker interface {
	Check(ctx context.Context, clientIP string) (bool, error)
}

// ClickHandler serves the click tracking endpoint.
type ClickHandler struct {
	clicks  ClickRecorder
	limiter RateChecker
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewClickHandler creates a new ClickHandler.
func NewClickHandler(clicks ClickRecorder, limiter RateChecker, recorder metrics.Recorder, logger *slog.Logger) *ClickHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ClickHandler{
		clicks:  clicks,
		limiter: limiter,
		metrics: recorder,
		logger:  logger.With("component", "handler.click"),
	}
}

// ServeHTTP handles /api/track-click. OPTIONS answers 200 with no body,
// POST records the click, anything else is 405.
func (h *ClickHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeTrackingError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()
	ip := middleware.ClientIP(r)

	allowed, err := h.limiter.Check(ctx, ip)
	if err != nil {
		// Fail open.
		h.metrics.IncRateLimitFailOpen()
		h.logger.Warn("rate limit check failed, allowing request",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	if !allowed {
		h.metrics.IncClickRejected(metrics.ReasonRateLimited)
		h.logger.Warn("click rate limited",
			"ip", ip,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeTrackingError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	data, err := decodeClickData(r.Body)
	if err != nil {
		h.metrics.IncClickRejected(metrics.ReasonInvalid)
		writeTrackingError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validation.Struct(&data); err != nil {
		h.metrics.IncClickRejected(metrics.ReasonInvalid)
		h.writeValidationError(w, err)
		return
	}

	event := model.ClickEventFromData(data, h.clicks.Now())
	event.ClientIP = ip
	event.UserAgent = r.UserAgent()

	if err := h.clicks.Record(ctx, event); err != nil {
		h.metrics.IncClickRejected(metrics.ReasonStoreError)
		h.logger.Error("failed to track click",
			"click_id", event.ClickID,
			"partner_id", event.PartnerID,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeTrackingError(w, http.StatusInternalServerError, "Failed to track click")
		return
	}

	h.metrics.IncClickRecorded()
	h.logger.Info("click_tracked",
		"click_id", event.ClickID,
		"partner_id", event.PartnerID,
	)

	writeJSON(w, http.StatusOK, dto.TrackClickResponse{
		Success:   true,
		Data:      dto.TrackedClick{ClickID: event.ClickID},
		Message:   "Click tracked successfully",
		Timestamp: isoNow(time.UnixMilli(h.clicks.Now())),
	})
}

func (h *ClickHandler) writeValidationError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) && verrs.HasTag("required") {
		writeJSON(w, http.StatusBadRequest, dto.TrackingError{
			Error:          "Missing required fields",
			RequiredFields: []string{"click_id", "partner_id"},
		})
		return
	}
	writeTrackingError(w, http.StatusBadRequest, "Invalid click_id format, must start with "+model.ClickIDPrefix)
}

// decodeClickData accepts a JSON object or a JSON string holding one, as
// sent by navigator.sendBeacon with a text body.
func decodeClickData(body io.Reader) (model.ClickData, error) {
	var data model.ClickData

	raw, err := io.ReadAll(body)
	if err != nil {
		return data, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return data, errEmptyBody
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return data, err
		}
		raw = []byte(inner)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return data, err
	}
	return data, nil
}
