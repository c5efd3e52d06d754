package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quindar/devicetrust/internal/api/handlers"
	"github.com/quindar/devicetrust/internal/api/middleware"
	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/config"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/trust"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	signing *ca.SigningContext,
	service *trust.Service,
	deviceRepo *repository.DeviceRepository,
	auditRepo *repository.AuditRepository,
	log *zap.SugaredLogger,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))

	// Create handlers
	caHandler := handlers.NewCAHandler(signing)
	deviceHandler := handlers.NewDeviceHandler(service, auditRepo)
	validateHandler := handlers.NewValidateHandler(service, auditRepo)
	crlHandler := handlers.NewCRLHandler(service)
	adminHandler := handlers.NewAdminHandler(deviceRepo, auditRepo)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Public endpoints
		caGroup := v1.Group("/ca")
		{
			caGroup.GET("/certificate", caHandler.GetCertificate)
		}

		// Device registration and validation
		v1.POST("/devices/register", deviceHandler.Register)
		v1.POST("/validate", validateHandler.Validate)
		v1.GET("/crl", crlHandler.Get)
		v1.GET("/devices/:device_id", deviceHandler.Get)

		// Lifecycle actions (require admin token and actor identity;
		// approve/revoke/remove additionally require TOTP when configured)
		devices := v1.Group("/devices")
		devices.Use(middleware.AdminAuth(cfg.Admin.TokenHash, auditRepo))
		{
			devices.POST("/:device_id/reject", deviceHandler.Reject)

			sensitive := devices.Group("")
			sensitive.Use(middleware.RequireTOTP(cfg.Admin.TOTPSecret, auditRepo))
			{
				sensitive.POST("/:device_id/approve", deviceHandler.Approve)
				sensitive.POST("/:device_id/revoke", deviceHandler.Revoke)
				sensitive.POST("/:device_id/remove", deviceHandler.Remove)
			}
		}

		// Admin listing endpoints
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.TokenHash, auditRepo))
		{
			admin.GET("/devices/pending", adminHandler.ListPendingDevices)
			admin.GET("/accounts/:account_token/devices", adminHandler.ListAccountDevices)
			admin.GET("/audit", adminHandler.ListAuditLogs)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
