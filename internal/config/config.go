package config

import (
	"fmt"
	"os"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	CA       CAConfig       `yaml:"ca"`
	Policy   PolicyConfig   `yaml:"policy"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CAConfig contains the CA identity and key parameters. KeyPath and
// CertPath hold the persisted CA key pair so the server and the admin
// CLI sign with the same CA identity.
type CAConfig struct {
	CommonName   string `yaml:"common_name"`
	Organization string `yaml:"organization"`
	Country      string `yaml:"country"`
	KeyBits      int    `yaml:"key_bits"`
	KeyPath      string `yaml:"key_path"`
	CertPath     string `yaml:"cert_path"`
}

// PolicyConfig contains device registration and certificate policy
type PolicyConfig struct {
	MaxDevicesPerAccount int `yaml:"max_devices_per_account"`
	CertValidityDays     int `yaml:"cert_validity_days"`
}

// AdminConfig contains admin authentication configuration
type AdminConfig struct {
	// TokenHash is a bcrypt hash of the admin token. Generate with
	// "admin token hash".
	TokenHash string `yaml:"token_hash"`
	// TOTPSecret, when set, requires a TOTP code on approve/revoke/remove
	TOTPSecret string `yaml:"totp_secret"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.CA.CommonName == "" {
		return fmt.Errorf("ca.common_name is required")
	}
	if c.CA.KeyBits < 2048 {
		return fmt.Errorf("ca.key_bits must be at least 2048")
	}
	if c.CA.KeyPath == "" {
		return fmt.Errorf("ca.key_path is required")
	}
	if c.CA.CertPath == "" {
		return fmt.Errorf("ca.cert_path is required")
	}

	if c.Policy.MaxDevicesPerAccount <= 0 {
		return fmt.Errorf("policy.max_devices_per_account must be positive")
	}
	if c.Policy.CertValidityDays <= 0 {
		return fmt.Errorf("policy.cert_validity_days must be positive")
	}

	if c.Admin.TokenHash == "" {
		return fmt.Errorf("admin.token_hash is required")
	}
	if c.Admin.TokenHash == "change-me" {
		fmt.Fprintf(os.Stderr, "WARNING: Using placeholder admin token hash. Please change it in production!\n")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// Default returns a configuration with sensible defaults applied
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8443"},
		Database: DatabaseConfig{Path: "/var/lib/device-trust/devices.db"},
		CA: CAConfig{
			CommonName:   "Device Trust CA",
			Organization: "Quindar",
			Country:      "US",
			KeyBits:      2048,
			KeyPath:      "/var/lib/device-trust/ca_key.pem",
			CertPath:     "/var/lib/device-trust/ca_cert.pem",
		},
		Policy: PolicyConfig{
			MaxDevicesPerAccount: 5,
			CertValidityDays:     365,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}
