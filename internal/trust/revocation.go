package trust

import (
	"fmt"
	"time"

	"github.com/quindar/devicetrust/internal/models"
	"github.com/quindar/devicetrust/pkg/certutil"
)

// RevocationResult reports the outcome of a revoke or remove action
type RevocationResult struct {
	DeviceID      string              `json:"device_id"`
	Status        models.DeviceStatus `json:"status"`
	SerialNumber  string              `json:"serial_number,omitempty"`
	LedgerUpdated bool                `json:"ledger_updated"`
}

// CRLSnapshot is a point-in-time view of the revocation ledger, ordered
// most-recent-first, with an order-sensitive checksum over the serials
// so a downstream consumer can detect a stale or corrupted copy.
type CRLSnapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Entries     []*models.RevocationEntry `json:"entries"`
	Checksum    string                    `json:"checksum"`
}

// Revoke revokes a device's certificate for a security concern and
// transitions the device to REVOKED. Repeating the call on an already
// revoked device succeeds without adding a duplicate ledger entry.
func (s *Service) Revoke(deviceID, revokedBy, reason string) (*RevocationResult, error) {
	return s.revoke(deviceID, revokedBy, reason, models.StatusRevoked, models.RevocationSecurityConcern)
}

// Remove handles voluntary account-initiated device removal. Same ledger
// effect as Revoke, but the device ends in REMOVED.
func (s *Service) Remove(deviceID, removedBy string) (*RevocationResult, error) {
	return s.revoke(deviceID, removedBy, "device removed from account", models.StatusRemoved, models.RevocationDeviceRemoved)
}

func (s *Service) revoke(deviceID, revokedBy, reason string, target models.DeviceStatus, revocationType models.RevocationType) (*RevocationResult, error) {
	device, err := s.getDevice(deviceID)
	if err != nil {
		return nil, err
	}

	alreadyTerminal := false
	switch device.Status {
	case models.StatusActive:
	case models.StatusRevoked, models.StatusRemoved:
		// revoking twice is legal, but the first transition is final:
		// the recorded status, time, and actor never change
		alreadyTerminal = true
	default:
		return nil, fmt.Errorf("%w: cannot revoke device in status %s", ErrInvalidState, device.Status)
	}

	now := time.Now()
	ledgerUpdated := false

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if device.HasCertificate() {
		// queried through the open transaction; the pool's only
		// connection is already held by it
		revoked, err := s.revocations.ExistsBySerialTx(tx, device.CertificateSerial)
		if err != nil {
			return nil, err
		}
		if !revoked {
			entry := &models.RevocationEntry{
				SerialNumber:           device.CertificateSerial,
				DeviceID:               device.DeviceID,
				AccountToken:           device.AccountToken,
				RevokedAt:              now,
				RevokedBy:              revokedBy,
				Reason:                 reason,
				RevocationType:         revocationType,
				CertificateFingerprint: device.CertificateFingerprint,
				OriginalExpiresAt:      device.CertificateExpiresAt,
			}
			if err := s.revocations.Append(tx, entry); err != nil {
				return nil, err
			}
			ledgerUpdated = true
		}
	}

	finalStatus := target
	if alreadyTerminal {
		finalStatus = device.Status
	} else {
		if err := s.devices.MarkRevoked(tx, device.DeviceID, target, revokedBy, reason, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit revocation: %w", err)
	}

	s.whitelist.invalidate()

	s.log.Infow("device revoked",
		"device_id", device.DeviceID,
		"revoked_by", revokedBy,
		"status", finalStatus,
		"serial", device.CertificateSerial,
		"ledger_updated", ledgerUpdated,
	)

	return &RevocationResult{
		DeviceID:      device.DeviceID,
		Status:        finalStatus,
		SerialNumber:  device.CertificateSerial,
		LedgerUpdated: ledgerUpdated,
	}, nil
}

// GetCRL returns the full revocation list as a snapshot
func (s *Service) GetCRL() (*CRLSnapshot, error) {
	entries, err := s.revocations.ListAll()
	if err != nil {
		return nil, err
	}

	serials := make([]string, len(entries))
	for i, e := range entries {
		serials[i] = e.SerialNumber
	}

	return &CRLSnapshot{
		GeneratedAt: time.Now(),
		Entries:     entries,
		Checksum:    certutil.SerialChecksum(serials),
	}, nil
}
