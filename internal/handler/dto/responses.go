// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/validation"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
}

// TrackingError is the failure envelope of the tracking and admin endpoints.
type TrackingError struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

// TrackClickResponse is returned after a click has been stored.
type TrackClickResponse struct {
	Success   bool         `json:"success"`
	Data      TrackedClick `json:"data"`
	Message   string       `json:"message"`
	Timestamp string       `json:"timestamp"`
}

// TrackedClick identifies the stored click.
type TrackedClick struct {
	ClickID string `json:"click_id"`
}

// DashboardResponse wraps the dashboard metrics.
type DashboardResponse struct {
	Success   bool                    `json:"success"`
	Data      *model.DashboardMetrics `json:"data"`
	Timestamp string                  `json:"timestamp"`
}

// ProductionError is the failure body of the production data endpoint.
type ProductionError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ValidationError is one invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ToValidationErrors converts validator output for a response body.
func ToValidationErrors(errs validation.Errors) []ValidationError {
	out := make([]ValidationError, len(errs))
	for i, fe := range errs {
		out[i] = ValidationError{Field: fe.Field, Message: fe.Error()}
	}
	return out
}
