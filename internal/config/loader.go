package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbPath := os.Getenv("DEVICE_TRUST_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if listenAddr := os.Getenv("DEVICE_TRUST_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if tokenHash := os.Getenv("DEVICE_TRUST_ADMIN_TOKEN_HASH"); tokenHash != "" {
		cfg.Admin.TokenHash = tokenHash
	}

	if totpSecret := os.Getenv("DEVICE_TRUST_TOTP_SECRET"); totpSecret != "" {
		cfg.Admin.TOTPSecret = totpSecret
	}

	if maxDevices := os.Getenv("DEVICE_TRUST_MAX_DEVICES"); maxDevices != "" {
		n, err := strconv.Atoi(maxDevices)
		if err != nil {
			return nil, fmt.Errorf("DEVICE_TRUST_MAX_DEVICES is not a number: %w", err)
		}
		cfg.Policy.MaxDevicesPerAccount = n
	}

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}
