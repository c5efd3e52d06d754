package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/trust"
)

// CRLHandler serves the certificate revocation list
type CRLHandler struct {
	service *trust.Service
}

// NewCRLHandler creates a new CRL handler
func NewCRLHandler(service *trust.Service) *CRLHandler {
	return &CRLHandler{service: service}
}

// Get returns the full revocation list snapshot with its checksum
// GET /v1/crl
func (h *CRLHandler) Get(c *gin.Context) {
	snapshot, err := h.service.GetCRL()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "failed to generate CRL")
		return
	}

	RespondSuccess(c, snapshot)
}
