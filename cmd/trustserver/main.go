package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quindar/devicetrust/internal/api"
	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/config"
	"github.com/quindar/devicetrust/internal/db"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/trust"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/device-trust/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Device Trust Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("starting device trust server", "version", Version, "commit", Commit)

	// Initialize database
	sugar.Infow("connecting to database", "path", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	// Run migrations
	if err := db.RunMigrations(database); err != nil {
		sugar.Fatalw("failed to run migrations", "error", err)
	}

	// CA signing context; the key pair is loaded or created lazily on
	// first issuance and shared with the admin CLI via disk
	signing := ca.NewSigningContext(
		cfg.CA.CommonName,
		cfg.CA.Organization,
		cfg.CA.Country,
		cfg.CA.KeyBits,
		cfg.CA.KeyPath,
		cfg.CA.CertPath,
	)
	issuer := ca.NewIssuer(signing, cfg.CA.KeyBits, cfg.Policy.CertValidityDays)

	// Initialize repositories
	deviceRepo := repository.NewDeviceRepository(database.DB)
	revocationRepo := repository.NewRevocationRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	// Trust workflows
	service := trust.NewService(
		database,
		deviceRepo,
		revocationRepo,
		issuer,
		cfg.Policy.MaxDevicesPerAccount,
		sugar,
	)

	// Create HTTP server
	server := api.NewServer(cfg, signing, service, deviceRepo, auditRepo, sugar)

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		sugar.Infow("starting HTTP server", "addr", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			sugar.Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	sugar.Info("shutting down server")

	database.Close()

	sugar.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Logging.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	return zapCfg.Build()
}
