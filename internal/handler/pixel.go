package handler

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/tracking"
)

// transparentGIF is a 1x1 transparent GIF89a.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x00, 0x00, 0x00,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00,
	0x3b,
}

// PixelStore records resolved pixel hits.
type PixelStore interface {
	Record(ctx context.Context, hit tracking.PixelHit) error
}

// PixelHandler serves the tracking pixel.
type PixelHandler struct {
	recorder PixelStore
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewPixelHandler creates a new PixelHandler.
func NewPixelHandler(recorder PixelStore, m metrics.Recorder, logger *slog.Logger) *PixelHandler {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &PixelHandler{
		recorder: recorder,
		metrics:  m,
		logger:   logger.With("component", "handler.pixel"),
	}
}

// Pixel records the hit and always answers 200 with the GIF, whatever
// happened while recording.
//
// GET /api/tracking/pixel
func (h *PixelHandler) Pixel(w http.ResponseWriter, r *http.Request) {
	h.record(r)
	writePixel(w)
}

func (h *PixelHandler) record(r *http.Request) {
	defer func() {
		if rvr := recover(); rvr != nil {
			h.metrics.IncPixelError()
			h.logger.Error("panic while recording pixel",
				"panic", rvr,
				"stack", string(debug.Stack()),
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
	}()

	query, err := model.ParsePixelQuery(r.URL.Query())
	if err != nil {
		h.logger.Debug("ignoring pixel data payload",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}

	hit := tracking.PixelHit{
		Event:     query.Event(),
		ClientIP:  middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}

	// Errors are logged and dropped; the image is served regardless.
	if err := h.recorder.Record(r.Context(), hit); err != nil {
		h.metrics.IncPixelError()
		h.logger.Warn("failed to record pixel event",
			"partner_id", hit.Event.PartnerID,
			"event_type", hit.Event.EventType,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
}

func writePixel(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Content-Length", strconv.Itoa(len(transparentGIF)))
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}
