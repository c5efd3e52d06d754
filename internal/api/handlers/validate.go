package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
	"github.com/quindar/devicetrust/internal/trust"
)

// ValidateHandler handles device authentication validation, the hot path
type ValidateHandler struct {
	service   *trust.Service
	auditRepo *repository.AuditRepository
}

// NewValidateHandler creates a new validation handler
func NewValidateHandler(service *trust.Service, auditRepo *repository.AuditRepository) *ValidateHandler {
	return &ValidateHandler{
		service:   service,
		auditRepo: auditRepo,
	}
}

// ValidateRequest represents a device validation request
type ValidateRequest struct {
	CertificateSerial string `json:"certificate_serial" binding:"required"`
	MACAddress        string `json:"mac_address" binding:"required"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// Validate handles a device authentication attempt
// POST /v1/validate
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	verdict, err := h.service.Validate(req.CertificateSerial, req.MACAddress, req.DeviceFingerprint)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "validation failed")
		return
	}

	// Denials with a security alert get an audit record; ordinary
	// misses are too frequent to be worth a row each.
	if verdict.SecurityAlert {
		_ = h.auditRepo.Create(&models.AuditLog{
			Action:    models.ActionDeviceValidate,
			DeviceID:  verdict.DeviceID,
			ClientIP:  GetClientIP(c),
			UserAgent: c.GetHeader("User-Agent"),
			Success:   false,
			ErrorMsg:  verdict.Reason,
			Details:   `{"security_alert":true}`,
		})
	}

	RespondSuccess(c, verdict)
}
