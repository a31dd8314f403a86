package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/bridge"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, renderer.ErrNoRenderer),
		errors.Is(err, sandbox.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resource.ErrUnknownFramework),
		errors.Is(err, resource.ErrUnknownSlot),
		errors.Is(err, resource.ErrInvalidKind),
		errors.Is(err, resource.ErrEmptyResource),
		errors.Is(err, resource.ErrAmbiguous),
		errors.Is(err, bridge.ErrInvalidEvent),
		errors.Is(err, bridge.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, bridge.ErrClosed):
		return http.StatusGone
	case errors.Is(err, sandbox.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, sandbox.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Unknown languages keep the
// registry's message and name the language.
func respondError(c *gin.Context, err error, fields gin.H) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if errors.Is(err, renderer.ErrNoRenderer) {
		body["error"] = renderer.ErrNoRenderer.Error()
	}
	for k, v := range fields {
		body[k] = v
	}
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, body)
}
