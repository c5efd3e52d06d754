package trust

import (
	"errors"
	"fmt"
	"time"

	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
)

// Verdict is the outcome of one authentication attempt. A failed
// validation is an expected, high-frequency result, not an error.
type Verdict struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	SecurityAlert bool   `json:"security_alert,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	AccountToken  string `json:"account_token,omitempty"`
}

func invalid(reason string) *Verdict {
	return &Verdict{Reason: reason}
}

// invalidAlert flags a failure worth investigating. Unlike a plain
// invalid verdict the device is already identified by serial, so the
// verdict carries its identity for the audit trail.
func invalidAlert(device *models.Device, reason string) *Verdict {
	return &Verdict{
		Reason:        reason,
		SecurityAlert: true,
		DeviceID:      device.DeviceID,
		AccountToken:  device.AccountToken,
	}
}

// Validate evaluates a presented certificate serial, MAC address, and
// device fingerprint against the registry. Checks run in a fixed order
// and stop at the first failure: revocation, identity, MAC binding,
// whitelist, fingerprint, expiration, status. The order is security
// relevant and must not be rearranged.
func (s *Service) Validate(serial, macAddress, fingerprint string) (*Verdict, error) {
	// 1. Revocation: known-bad credentials are rejected first
	revoked, err := s.revocations.ExistsBySerial(serial)
	if err != nil {
		return nil, err
	}
	if revoked {
		return invalid("certificate revoked"), nil
	}

	// 2. Identity resolution by serial
	device, err := s.devices.GetBySerial(serial)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid("certificate not recognized"), nil
	}
	if err != nil {
		return nil, err
	}

	// 3. MAC binding: a mismatch suggests certificate theft or replay
	mac, macErr := CanonicalizeMAC(macAddress)
	if macErr != nil || mac != device.MACAddress {
		s.securityAlert(device, "MAC address mismatch", macAddress)
		return invalidAlert(device, "device identifier mismatch"), nil
	}

	// 4. Whitelist membership
	whitelisted, err := s.whitelistContains(mac)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		return invalid("device not authorized"), nil
	}

	// 5. Fingerprint: a mismatch suggests device cloning
	if device.DeviceFingerprint != "" && device.DeviceFingerprint != fingerprint {
		s.securityAlert(device, "device fingerprint mismatch", "")
		return invalidAlert(device, "device verification failed"), nil
	}

	// 6. Expiration
	if device.CertificateExpiresAt != nil && device.CertificateExpiresAt.Before(time.Now()) {
		return invalid("certificate expired"), nil
	}

	// 7. Lifecycle status
	if device.Status != models.StatusActive {
		return invalid(fmt.Sprintf("device is not active: %s", device.Status)), nil
	}

	// Success: record the sighting. A failed write does not flip the
	// verdict; the device already proved itself.
	if err := s.devices.UpdateLastSeen(device.DeviceID, time.Now()); err != nil {
		s.log.Warnw("failed to update last seen",
			"device_id", device.DeviceID,
			"error", err,
		)
	}

	return &Verdict{
		Valid:        true,
		DeviceID:     device.DeviceID,
		AccountToken: device.AccountToken,
	}, nil
}

func (s *Service) securityAlert(device *models.Device, cause, presented string) {
	s.log.Warnw("device validation security alert",
		"security_alert", true,
		"cause", cause,
		"device_id", device.DeviceID,
		"account", device.AccountToken,
		"presented_mac", presented,
	)
}
