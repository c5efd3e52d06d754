package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/api/middleware"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
	"github.com/quindar/devicetrust/internal/trust"
)

// DeviceHandler handles device registration and lifecycle actions
type DeviceHandler struct {
	service   *trust.Service
	auditRepo *repository.AuditRepository
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(service *trust.Service, auditRepo *repository.AuditRepository) *DeviceHandler {
	return &DeviceHandler{
		service:   service,
		auditRepo: auditRepo,
	}
}

// RegisterDeviceRequest represents a device registration request
type RegisterDeviceRequest struct {
	AccountToken      string `json:"account_token" binding:"required"`
	MACAddress        string `json:"mac_address" binding:"required"`
	DeviceFingerprint string `json:"device_fingerprint"`
	DeviceName        string `json:"device_name"`
	DeviceType        string `json:"device_type"`
	OS                string `json:"os"`
}

// RegisterDeviceResponse represents a device registration response
type RegisterDeviceResponse struct {
	Status   string         `json:"status"`
	DeviceID string         `json:"device_id"`
	Device   *models.Device `json:"device"`
}

// Register handles device registration
// POST /v1/devices/register
func (h *DeviceHandler) Register(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	device, err := h.service.RequestRegistration(trust.RegisterRequest{
		AccountToken:      req.AccountToken,
		MACAddress:        req.MACAddress,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceName:        req.DeviceName,
		DeviceType:        req.DeviceType,
		OS:                req.OS,
	})
	h.audit(c, models.ActionDeviceRegister, "", deviceIDOf(device), err)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterDeviceResponse{
		Status:   "pending_approval",
		DeviceID: device.DeviceID,
		Device:   device,
	})
}

// ApproveDeviceResponse carries the issued certificate artifacts
type ApproveDeviceResponse struct {
	Status      string      `json:"status"`
	DeviceID    string      `json:"device_id"`
	Certificate interface{} `json:"certificate"`
}

// Approve handles device approval and certificate issuance
// POST /v1/devices/:device_id/approve
func (h *DeviceHandler) Approve(c *gin.Context) {
	deviceID := c.Param("device_id")
	actor := c.GetString(middleware.ActorKey)

	cert, err := h.service.Approve(deviceID, actor)
	h.audit(c, models.ActionDeviceApprove, actor, deviceID, err)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	RespondSuccess(c, ApproveDeviceResponse{
		Status:      "active",
		DeviceID:    deviceID,
		Certificate: cert,
	})
}

// RejectDeviceRequest represents a rejection request
type RejectDeviceRequest struct {
	Reason string `json:"reason"`
}

// Reject handles device rejection
// POST /v1/devices/:device_id/reject
func (h *DeviceHandler) Reject(c *gin.Context) {
	deviceID := c.Param("device_id")
	actor := c.GetString(middleware.ActorKey)

	var req RejectDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	device, err := h.service.Reject(deviceID, actor, req.Reason)
	h.audit(c, models.ActionDeviceReject, actor, deviceID, err)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	RespondSuccess(c, device)
}

// RevokeDeviceRequest represents a revocation request
type RevokeDeviceRequest struct {
	Reason string `json:"reason"`
}

// Revoke handles certificate revocation
// POST /v1/devices/:device_id/revoke
func (h *DeviceHandler) Revoke(c *gin.Context) {
	deviceID := c.Param("device_id")
	actor := c.GetString(middleware.ActorKey)

	var req RevokeDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.service.Revoke(deviceID, actor, req.Reason)
	h.audit(c, models.ActionDeviceRevoke, actor, deviceID, err)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	RespondSuccess(c, result)
}

// Remove handles voluntary device removal
// POST /v1/devices/:device_id/remove
func (h *DeviceHandler) Remove(c *gin.Context) {
	deviceID := c.Param("device_id")
	actor := c.GetString(middleware.ActorKey)

	result, err := h.service.Remove(deviceID, actor)
	h.audit(c, models.ActionDeviceRemove, actor, deviceID, err)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	RespondSuccess(c, result)
}

// Get returns a single device
// GET /v1/devices/:device_id
func (h *DeviceHandler) Get(c *gin.Context) {
	device, err := h.service.GetDevice(c.Param("device_id"))
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}

	RespondSuccess(c, device)
}

func (h *DeviceHandler) audit(c *gin.Context, action, actor, deviceID string, opErr error) {
	entry := &models.AuditLog{
		Action:    action,
		Actor:     actor,
		DeviceID:  deviceID,
		ClientIP:  GetClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   opErr == nil,
	}
	if opErr != nil {
		entry.ErrorMsg = opErr.Error()
	}

	// Audit writes never fail the request
	_ = h.auditRepo.Create(entry)
}

func deviceIDOf(d *models.Device) string {
	if d == nil {
		return ""
	}
	return d.DeviceID
}
