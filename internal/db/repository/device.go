package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quindar/devicetrust/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// DeviceRepository handles device record data access
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `
	id, device_id, account_token, mac_address, device_fingerprint,
	device_name, device_type, os, status,
	certificate_serial, certificate_fingerprint, certificate_expires_at,
	requested_at, approved_at, approved_by,
	rejected_at, rejected_by, rejected_for,
	revoked_at, revoked_by, revoked_for, last_seen_at
`

// Create persists a newly registered device
func (r *DeviceRepository) Create(d *models.Device) error {
	query := `
		INSERT INTO devices (
			device_id, account_token, mac_address, device_fingerprint,
			device_name, device_type, os, status, requested_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		d.DeviceID,
		d.AccountToken,
		d.MACAddress,
		nullString(d.DeviceFingerprint),
		nullString(d.DeviceName),
		nullString(d.DeviceType),
		nullString(d.OS),
		string(d.Status),
		d.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// GetByDeviceID retrieves a device by its opaque device identifier
func (r *DeviceRepository) GetByDeviceID(deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`
	return r.scanOne(r.db.QueryRow(query, deviceID))
}

// GetBySerial retrieves a device by its certificate serial number
func (r *DeviceRepository) GetBySerial(serial string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE certificate_serial = ?`
	return r.scanOne(r.db.QueryRow(query, serial))
}

// ActiveExistsByMAC reports whether an ACTIVE device holds the given MAC.
// MAC addresses are stored in canonical uppercase form.
func (r *DeviceRepository) ActiveExistsByMAC(mac string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM devices
		WHERE mac_address = ? AND status = ?
	`

	var count int
	if err := r.db.QueryRow(query, mac, string(models.StatusActive)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check MAC: %w", err)
	}

	return count > 0, nil
}

// CountChargeableByAccount counts devices held against the account quota:
// everything except rejected and removed devices.
func (r *DeviceRepository) CountChargeableByAccount(accountToken string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM devices
		WHERE account_token = ? AND status NOT IN (?, ?)
	`

	var count int
	err := r.db.QueryRow(query, accountToken,
		string(models.StatusRejected), string(models.StatusRemoved)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count account devices: %w", err)
	}

	return count, nil
}

// ListActiveMACs returns the MAC addresses of all ACTIVE devices
func (r *DeviceRepository) ListActiveMACs() ([]string, error) {
	query := `SELECT mac_address FROM devices WHERE status = ?`

	rows, err := r.db.Query(query, string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active MACs: %w", err)
	}
	defer rows.Close()

	var macs []string
	for rows.Next() {
		var mac string
		if err := rows.Scan(&mac); err != nil {
			return nil, fmt.Errorf("failed to scan MAC: %w", err)
		}
		macs = append(macs, mac)
	}

	return macs, rows.Err()
}

// ListByAccount lists all devices for an account, most recent first
func (r *DeviceRepository) ListByAccount(accountToken string, limit int) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE account_token = ?
		ORDER BY requested_at DESC
		LIMIT ?`

	return r.list(query, accountToken, limit)
}

// ListByStatus lists all devices in the given status, most recent first
func (r *DeviceRepository) ListByStatus(status models.DeviceStatus, limit int) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE status = ?
		ORDER BY requested_at DESC
		LIMIT ?`

	return r.list(query, string(status), limit)
}

// MarkActive transitions a device to ACTIVE with its certificate binding.
// Runs inside the caller-supplied transaction so the binding and the
// status flip commit together.
func (r *DeviceRepository) MarkActive(tx *sql.Tx, deviceID, serial, fingerprint string, expiresAt, approvedAt time.Time, approvedBy string) error {
	query := `
		UPDATE devices
		SET status = ?, certificate_serial = ?, certificate_fingerprint = ?,
		    certificate_expires_at = ?, approved_at = ?, approved_by = ?
		WHERE device_id = ?
	`

	_, err := tx.Exec(query,
		string(models.StatusActive), serial, fingerprint,
		expiresAt, approvedAt, approvedBy, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark device active: %w", err)
	}
	return nil
}

// MarkRejected transitions a device to REJECTED
func (r *DeviceRepository) MarkRejected(deviceID, rejectedBy, reason string, rejectedAt time.Time) error {
	query := `
		UPDATE devices
		SET status = ?, rejected_at = ?, rejected_by = ?, rejected_for = ?
		WHERE device_id = ?
	`

	_, err := r.db.Exec(query,
		string(models.StatusRejected), rejectedAt, rejectedBy, nullString(reason), deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark device rejected: %w", err)
	}
	return nil
}

// MarkRevoked transitions a device to REVOKED or REMOVED inside the
// caller-supplied transaction, alongside the revocation ledger append.
func (r *DeviceRepository) MarkRevoked(tx *sql.Tx, deviceID string, status models.DeviceStatus, revokedBy, reason string, revokedAt time.Time) error {
	query := `
		UPDATE devices
		SET status = ?, revoked_at = ?, revoked_by = ?, revoked_for = ?
		WHERE device_id = ?
	`

	_, err := tx.Exec(query,
		string(status), revokedAt, revokedBy, nullString(reason), deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark device revoked: %w", err)
	}
	return nil
}

// UpdateLastSeen records a successful validation for the device
func (r *DeviceRepository) UpdateLastSeen(deviceID string, seenAt time.Time) error {
	query := `UPDATE devices SET last_seen_at = ? WHERE device_id = ?`

	if _, err := r.db.Exec(query, seenAt, deviceID); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}

func (r *DeviceRepository) list(query string, args ...interface{}) ([]*models.Device, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

func (r *DeviceRepository) scanOne(row *sql.Row) (*models.Device, error) {
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	d := &models.Device{}
	var status string
	var fingerprint, name, deviceType, osName sql.NullString
	var certSerial, certFP sql.NullString
	var certExpires, approvedAt, rejectedAt, revokedAt, lastSeenAt sql.NullTime
	var approvedBy, rejectedBy, rejectedFor, revokedBy, revokedFor sql.NullString

	err := row.Scan(
		&d.ID, &d.DeviceID, &d.AccountToken, &d.MACAddress, &fingerprint,
		&name, &deviceType, &osName, &status,
		&certSerial, &certFP, &certExpires,
		&d.RequestedAt, &approvedAt, &approvedBy,
		&rejectedAt, &rejectedBy, &rejectedFor,
		&revokedAt, &revokedBy, &revokedFor, &lastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = models.DeviceStatus(status)
	d.DeviceFingerprint = fingerprint.String
	d.DeviceName = name.String
	d.DeviceType = deviceType.String
	d.OS = osName.String
	d.CertificateSerial = certSerial.String
	d.CertificateFingerprint = certFP.String
	d.ApprovedBy = approvedBy.String
	d.RejectedBy = rejectedBy.String
	d.RejectedFor = rejectedFor.String
	d.RevokedBy = revokedBy.String
	d.RevokedFor = revokedFor.String
	d.CertificateExpiresAt = nullTime(certExpires)
	d.ApprovedAt = nullTime(approvedAt)
	d.RejectedAt = nullTime(rejectedAt)
	d.RevokedAt = nullTime(revokedAt)
	d.LastSeenAt = nullTime(lastSeenAt)

	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
