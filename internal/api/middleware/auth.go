package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quindar/devicetrust/internal/auth"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
)

// ActorKey is the gin context key holding the authenticated actor identity
const ActorKey = "actor"

// AdminAuth checks the admin token and extracts the acting admin's
// identity. Every approve/reject/revoke/remove call must carry one.
// Failed attempts land on the audit trail when an audit repo is given.
func AdminAuth(tokenHash string, auditRepo *repository.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Admin-Token")

		if token == "" {
			auditAuthFailure(c, auditRepo, "missing admin token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Admin token required",
			})
			c.Abort()
			return
		}

		if !auth.VerifyAdminToken(token, tokenHash) {
			auditAuthFailure(c, auditRepo, "invalid admin token")
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid admin token",
			})
			c.Abort()
			return
		}

		actor := c.GetHeader("X-Actor")
		if actor == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_input",
				"message": "X-Actor header is required for admin actions",
			})
			c.Abort()
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// RequireTOTP additionally demands a valid TOTP code on sensitive
// actions when a TOTP secret is configured. A no-op otherwise.
func RequireTOTP(secret string, auditRepo *repository.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		code := c.GetHeader("X-TOTP-Code")
		if code == "" || !auth.ValidateTOTP(secret, code) {
			auditAuthFailure(c, auditRepo, "invalid TOTP code")
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Valid TOTP code required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func auditAuthFailure(c *gin.Context, auditRepo *repository.AuditRepository, msg string) {
	if auditRepo == nil {
		return
	}

	// Audit writes never fail the request
	_ = auditRepo.Create(&models.AuditLog{
		Action:    models.ActionAuthFailed,
		Actor:     c.GetHeader("X-Actor"),
		ClientIP:  c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   false,
		ErrorMsg:  msg,
	})
}
