package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	"shuttlepay/internal/repository"
	"shuttlepay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string  `json:"error"`
	Shortfall float64 `json:"shortfall,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	body := ErrorResponse{Error: err.Error()}

	var balanceErr *service.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		body.Shortfall = balanceErr.Shortfall()
	}

	c.JSON(mapErrorToHTTPStatus(err), body)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository/backend errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	// Backend business rejections keep their meaning for 4xx; anything the
	// backend got wrong server-side surfaces as a bad gateway.
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidFare),
		errors.Is(err, service.ErrInvalidTopupAmount),
		errors.Is(err, service.ErrInvalidReference),
		errors.Is(err, domain.ErrMalformedToken):
		return http.StatusBadRequest

	// Authentication/authorization
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRoleNotAllowed):
		return http.StatusForbidden

	// Precondition failures
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrCodeExpired):
		return http.StatusGone

	// Conflict errors
	case errors.Is(err, service.ErrAttemptInFlight),
		errors.Is(err, service.ErrReferenceFinalized),
		errors.Is(err, service.ErrAlreadyAttempted),
		errors.Is(err, service.ErrCaptureInProgress),
		errors.Is(err, service.ErrNotCapturing):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
