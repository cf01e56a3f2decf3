// Package handler provides HTTP request handlers.
package handler

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/handler/dto"
)

// Version is reported by the index endpoint.
const Version = "1.0.0"

// Handler serves the service-level endpoints.
type Handler struct {
	siteURL string
}

// New creates a new Handler instance.
func New(siteURL string) *Handler {
	return &Handler{siteURL: siteURL}
}

// Index describes the service.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "dinelportal-tracking",
		"site":    h.siteURL,
		"version": Version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{
		Error: "resource not found",
		Code:  "NOT_FOUND",
	})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{
		Error: "method not allowed",
		Code:  "METHOD_NOT_ALLOWED",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent.
	_ = json.NewEncoder(w).Encode(data)
}

// writeTrackingError writes the {success:false, error} envelope.
func writeTrackingError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.TrackingError{Error: message})
}

// isoNow formats t the way the tracking responses report time.
func isoNow(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
