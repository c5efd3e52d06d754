package repository

import (
	"database/sql"
	"fmt"

	"github.com/quindar/devicetrust/internal/models"
)

// RevocationRepository handles revocation ledger data access.
// The ledger is append-only: entries are never updated or deleted.
type RevocationRepository struct {
	db *sql.DB
}

// NewRevocationRepository creates a new revocation repository
func NewRevocationRepository(db *sql.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

// Append writes a revocation entry inside the caller-supplied transaction
func (r *RevocationRepository) Append(tx *sql.Tx, e *models.RevocationEntry) error {
	query := `
		INSERT INTO revocations (
			serial_number, device_id, account_token, revoked_at, revoked_by,
			reason, revocation_type, certificate_fingerprint, original_expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var originalExpires interface{}
	if e.OriginalExpiresAt != nil {
		originalExpires = *e.OriginalExpiresAt
	}

	result, err := tx.Exec(query,
		e.SerialNumber,
		e.DeviceID,
		e.AccountToken,
		e.RevokedAt,
		e.RevokedBy,
		nullString(e.Reason),
		string(e.RevocationType),
		nullString(e.CertificateFingerprint),
		originalExpires,
	)
	if err != nil {
		return fmt.Errorf("failed to append revocation entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.ID = id
	return nil
}

// ExistsBySerial reports whether a serial number appears in the ledger
func (r *RevocationRepository) ExistsBySerial(serial string) (bool, error) {
	return existsBySerial(r.db, serial)
}

// ExistsBySerialTx is ExistsBySerial scoped to the caller's open
// transaction. Required when the connection pool is exhausted by the
// transaction itself, as with a single-connection SQLite pool.
func (r *RevocationRepository) ExistsBySerialTx(tx *sql.Tx, serial string) (bool, error) {
	return existsBySerial(tx, serial)
}

type rowQuerier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func existsBySerial(q rowQuerier, serial string) (bool, error) {
	query := `SELECT COUNT(*) FROM revocations WHERE serial_number = ?`

	var count int
	if err := q.QueryRow(query, serial).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	return count > 0, nil
}

// ListAll returns the full ledger ordered by revocation time descending
func (r *RevocationRepository) ListAll() ([]*models.RevocationEntry, error) {
	query := `
		SELECT id, serial_number, device_id, account_token, revoked_at, revoked_by,
		       reason, revocation_type, certificate_fingerprint, original_expires_at
		FROM revocations
		ORDER BY revoked_at DESC, id DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list revocations: %w", err)
	}
	defer rows.Close()

	var entries []*models.RevocationEntry
	for rows.Next() {
		e := &models.RevocationEntry{}
		var revocationType string
		var reason, certFP sql.NullString
		var originalExpires sql.NullTime

		err := rows.Scan(
			&e.ID, &e.SerialNumber, &e.DeviceID, &e.AccountToken,
			&e.RevokedAt, &e.RevokedBy, &reason, &revocationType,
			&certFP, &originalExpires,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revocation entry: %w", err)
		}

		e.Reason = reason.String
		e.RevocationType = models.RevocationType(revocationType)
		e.CertificateFingerprint = certFP.String
		if originalExpires.Valid {
			t := originalExpires.Time
			e.OriginalExpiresAt = &t
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
