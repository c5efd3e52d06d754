package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
)

// AdminHandler handles administrative listing endpoints
type AdminHandler struct {
	deviceRepo *repository.DeviceRepository
	auditRepo  *repository.AuditRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deviceRepo *repository.DeviceRepository, auditRepo *repository.AuditRepository) *AdminHandler {
	return &AdminHandler{
		deviceRepo: deviceRepo,
		auditRepo:  auditRepo,
	}
}

// ListPendingDevices lists devices awaiting approval
// GET /v1/admin/devices/pending
func (h *AdminHandler) ListPendingDevices(c *gin.Context) {
	limit := queryLimit(c, 100)

	devices, err := h.deviceRepo.ListByStatus(models.StatusPendingApproval, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "failed to list devices")
		return
	}

	RespondSuccess(c, gin.H{"devices": devices})
}

// ListAccountDevices lists every device registered against an account
// GET /v1/admin/accounts/:account_token/devices
func (h *AdminHandler) ListAccountDevices(c *gin.Context) {
	limit := queryLimit(c, 100)

	devices, err := h.deviceRepo.ListByAccount(c.Param("account_token"), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "failed to list devices")
		return
	}

	RespondSuccess(c, gin.H{"devices": devices})
}

// ListAuditLogs lists audit logs with optional filters
// GET /v1/admin/audit?actor=&action=&limit=
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	actor := c.Query("actor")
	action := c.Query("action")
	limit := queryLimit(c, 100)

	logs, err := h.auditRepo.List(actor, action, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "failed to list audit logs")
		return
	}

	RespondSuccess(c, gin.H{"logs": logs})
}

func queryLimit(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
