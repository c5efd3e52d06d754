package trust

import (
	"errors"
	"fmt"
	"time"

	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
)

// RegisterRequest carries a device registration request
type RegisterRequest struct {
	AccountToken      string
	MACAddress        string
	DeviceFingerprint string
	DeviceName        string
	DeviceType        string
	OS                string
}

// RequestRegistration validates the request and persists a new device
// in PENDING_APPROVAL. No certificate is issued at this stage.
func (s *Service) RequestRegistration(req RegisterRequest) (*models.Device, error) {
	mac, err := CanonicalizeMAC(req.MACAddress)
	if err != nil {
		return nil, err
	}

	exists, err := s.devices.ActiveExistsByMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing devices: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w (MAC %s)", ErrDeviceConflict, mac)
	}

	count, err := s.devices.CountChargeableByAccount(req.AccountToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check device quota: %w", err)
	}
	if count >= s.maxDevices {
		return nil, fmt.Errorf("%w (%d/%d)", ErrLimitExceeded, count, s.maxDevices)
	}

	deviceID, err := newDeviceID()
	if err != nil {
		return nil, err
	}

	device := &models.Device{
		DeviceID:          deviceID,
		AccountToken:      req.AccountToken,
		MACAddress:        mac,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceName:        req.DeviceName,
		DeviceType:        req.DeviceType,
		OS:                req.OS,
		Status:            models.StatusPendingApproval,
		RequestedAt:       time.Now(),
	}

	if err := s.devices.Create(device); err != nil {
		return nil, err
	}

	s.log.Infow("device registration requested",
		"device_id", device.DeviceID,
		"account", device.AccountToken,
		"mac", device.MACAddress,
	)

	return device, nil
}

// Approve issues a certificate for a pending device and transitions it
// to ACTIVE. The device transition commits only after issuance fully
// succeeds; an issuance failure leaves the device in PENDING_APPROVAL.
func (s *Service) Approve(deviceID, approvedBy string) (*ca.Certificate, error) {
	device, err := s.getDevice(deviceID)
	if err != nil {
		return nil, err
	}

	if device.Status != models.StatusPendingApproval {
		return nil, fmt.Errorf("%w: cannot approve device in status %s", ErrInvalidState, device.Status)
	}

	cert, err := s.issuer.Issue(device.DeviceID, device.DeviceType, device.MACAddress)
	if err != nil {
		s.log.Errorw("certificate issuance failed",
			"device_id", device.DeviceID,
			"error", err,
		)
		return nil, err
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	approvedAt := time.Now()
	if err := s.devices.MarkActive(tx, device.DeviceID, cert.SerialNumber, cert.Fingerprint, cert.ExpiresAt, approvedAt, approvedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	s.whitelist.invalidate()

	s.log.Infow("device approved",
		"device_id", device.DeviceID,
		"approved_by", approvedBy,
		"serial", cert.SerialNumber,
		"expires_at", cert.ExpiresAt,
	)

	return cert, nil
}

// Reject transitions a pending device to REJECTED. Admin action only,
// with no side effects beyond the status and audit fields.
func (s *Service) Reject(deviceID, rejectedBy, reason string) (*models.Device, error) {
	device, err := s.getDevice(deviceID)
	if err != nil {
		return nil, err
	}

	if device.Status != models.StatusPendingApproval {
		return nil, fmt.Errorf("%w: cannot reject device in status %s", ErrInvalidState, device.Status)
	}

	if err := s.devices.MarkRejected(device.DeviceID, rejectedBy, reason, time.Now()); err != nil {
		return nil, err
	}

	s.log.Infow("device rejected",
		"device_id", device.DeviceID,
		"rejected_by", rejectedBy,
		"reason", reason,
	)

	return s.getDevice(deviceID)
}

// GetDevice returns a device by its opaque identifier
func (s *Service) GetDevice(deviceID string) (*models.Device, error) {
	return s.getDevice(deviceID)
}

func (s *Service) getDevice(deviceID string) (*models.Device, error) {
	device, err := s.devices.GetByDeviceID(deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}
