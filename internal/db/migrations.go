package db

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes all database migrations
func RunMigrations(db *DB) error {
	// Check if schema_version table exists
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		// First time initialization
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY applied_at DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Apply migrations if needed
	// Currently only version 1 exists
	if currentVersion < 1 {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	return nil
}

// initializeSchema creates all tables for a new database
func initializeSchema(db *DB) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Schema version table
	if err := execSQL(tx, schemaVersionTable); err != nil {
		return err
	}

	// Devices table
	if err := execSQL(tx, devicesTable); err != nil {
		return err
	}
	if err := execSQL(tx, devicesIndexes); err != nil {
		return err
	}

	// Revocations table
	if err := execSQL(tx, revocationsTable); err != nil {
		return err
	}
	if err := execSQL(tx, revocationsIndexes); err != nil {
		return err
	}

	// Audit logs table
	if err := execSQL(tx, auditLogsTable); err != nil {
		return err
	}
	if err := execSQL(tx, auditLogsIndexes); err != nil {
		return err
	}

	// Insert initial schema version
	if err := execSQL(tx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
		return err
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	devicesTable = `
CREATE TABLE devices (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id               TEXT NOT NULL UNIQUE,
    account_token           TEXT NOT NULL,
    mac_address             TEXT NOT NULL,
    device_fingerprint      TEXT,
    device_name             TEXT,
    device_type             TEXT,
    os                      TEXT,
    status                  TEXT NOT NULL DEFAULT 'PENDING_APPROVAL',
    certificate_serial      TEXT,
    certificate_fingerprint TEXT,
    certificate_expires_at  DATETIME,
    requested_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    approved_at             DATETIME,
    approved_by             TEXT,
    rejected_at             DATETIME,
    rejected_by             TEXT,
    rejected_for            TEXT,
    revoked_at              DATETIME,
    revoked_by              TEXT,
    revoked_for             TEXT,
    last_seen_at            DATETIME
)`

	devicesIndexes = `
CREATE INDEX idx_devices_device_id ON devices(device_id);
CREATE INDEX idx_devices_account ON devices(account_token);
CREATE INDEX idx_devices_mac ON devices(mac_address);
CREATE INDEX idx_devices_serial ON devices(certificate_serial);
CREATE INDEX idx_devices_status ON devices(status)`

	revocationsTable = `
CREATE TABLE revocations (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    serial_number           TEXT NOT NULL UNIQUE,
    device_id               TEXT NOT NULL,
    account_token           TEXT NOT NULL,
    revoked_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    revoked_by              TEXT NOT NULL,
    reason                  TEXT,
    revocation_type         TEXT NOT NULL,
    certificate_fingerprint TEXT,
    original_expires_at     DATETIME
)`

	revocationsIndexes = `
CREATE INDEX idx_revocations_serial ON revocations(serial_number);
CREATE INDEX idx_revocations_revoked_at ON revocations(revoked_at);
CREATE INDEX idx_revocations_device_id ON revocations(device_id)`

	auditLogsTable = `
CREATE TABLE audit_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    action      TEXT NOT NULL,
    actor       TEXT,
    device_id   TEXT,
    client_ip   TEXT NOT NULL,
    user_agent  TEXT,
    success     INTEGER NOT NULL,
    error_msg   TEXT,
    details     TEXT
)`

	auditLogsIndexes = `
CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX idx_audit_action ON audit_logs(action);
CREATE INDEX idx_audit_actor ON audit_logs(actor);
CREATE INDEX idx_audit_device_id ON audit_logs(device_id);
CREATE INDEX idx_audit_success ON audit_logs(success)`
)
