package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/trust"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// RespondError sends an error response
func RespondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondSuccess sends a success response
func RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondWorkflowError maps a trust workflow error to an HTTP response
func RespondWorkflowError(c *gin.Context, err error) {
	var cryptoErr *ca.CryptoError

	switch {
	case errors.Is(err, trust.ErrInvalidMAC):
		RespondError(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, trust.ErrDeviceConflict):
		RespondError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, trust.ErrLimitExceeded):
		RespondError(c, http.StatusForbidden, "limit_exceeded", err.Error())
	case errors.Is(err, trust.ErrDeviceNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, trust.ErrInvalidState):
		RespondError(c, http.StatusConflict, "invalid_state", err.Error())
	case errors.As(err, &cryptoErr):
		// The trust root itself could not be used; never soften this
		RespondError(c, http.StatusInternalServerError, "crypto_failure", err.Error())
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// GetClientIP gets the real client IP address
func GetClientIP(c *gin.Context) string {
	// Try X-Forwarded-For header first (for proxied requests)
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}

	// Try X-Real-IP header
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	// Fall back to RemoteAddr
	return c.ClientIP()
}
