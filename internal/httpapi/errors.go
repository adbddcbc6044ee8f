package httpapi

import (
	"errors"
	"net/http"

	"citizen-engagement/internal/issues"

	"github.com/gin-gonic/gin"
)

// statusFor maps the workflow error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, issues.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, issues.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, issues.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, issues.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, issues.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, issues.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts with the mapped status. Internal failures are recorded on
// the gin context for the request logger and not echoed to the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
