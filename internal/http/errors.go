package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
	"pmpm/internal/panel"
	"pmpm/internal/services"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newAPIError(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

var (
	ErrNotFound           = newAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	ErrMethodNotAllowed   = newAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	ErrServiceUnavailable = newAPIError(http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Dashboard data is unavailable", nil)
)

func validationFailed(details []ValidationError) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", details)
}

// toAPIError maps a service error onto the response it is reported with.
// Backend failures are reported without their cause.
func toAPIError(err error) *APIError {
	var (
		apiErr    *APIError
		domainErr *core.DomainError
		filterErr *services.FilterError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &domainErr):
		return newAPIError(http.StatusBadRequest, "INVALID_RANGE", "Range endpoint is not a known period",
			map[string]string{"endpoint": domainErr.Endpoint})
	case errors.As(err, &filterErr):
		return validationFailed([]ValidationError{{
			Field:   filterErr.Field,
			Message: "panel " + filterErr.Panel + " cannot be filtered by this field",
		}})
	case errors.Is(err, panel.ErrPanelNotFound):
		return newAPIError(http.StatusNotFound, "PANEL_NOT_FOUND", "Panel not found", nil)
	case errors.Is(err, dataset.ErrDatasetNotFound):
		return newAPIError(http.StatusNotFound, "DATASET_NOT_FOUND", "Extract not found", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Dashboard data timed out", nil)
	default:
		return ErrServiceUnavailable
	}
}
