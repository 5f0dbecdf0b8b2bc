package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/service"
)

// StatusClientClosedRequest is the non-standard status for canceled requests.
const StatusClientClosedRequest = 499

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDataUnavailable), errors.Is(err, service.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrCanceled):
		return StatusClientClosedRequest
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the mapped status and records err
// for the request logger. Internal errors are not echoed to the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
