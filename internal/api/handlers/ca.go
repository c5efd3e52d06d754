package handlers

import (
	"encoding/pem"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/ca"
)

// CAHandler serves the CA certificate for client installation
type CAHandler struct {
	signing *ca.SigningContext
}

// NewCAHandler creates a new CA handler
func NewCAHandler(signing *ca.SigningContext) *CAHandler {
	return &CAHandler{signing: signing}
}

// GetCertificate returns the CA certificate in PEM form
// GET /v1/ca/certificate
func (h *CAHandler) GetCertificate(c *gin.Context) {
	der, err := h.signing.CACertificate()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "crypto_failure", "CA certificate unavailable")
		return
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	c.Data(http.StatusOK, "application/x-pem-file", pemBytes)
}
