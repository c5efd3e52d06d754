package models

import "time"

// DeviceStatus is the lifecycle state of a registered device
type DeviceStatus string

const (
	StatusPendingApproval DeviceStatus = "PENDING_APPROVAL"
	StatusActive          DeviceStatus = "ACTIVE"
	StatusRejected        DeviceStatus = "REJECTED"
	StatusRevoked         DeviceStatus = "REVOKED"
	StatusRemoved         DeviceStatus = "REMOVED"
)

// Terminal reports whether the status permits no further transitions
func (s DeviceStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusRevoked, StatusRemoved:
		return true
	}
	return false
}

// Device represents one registered device bound to an account
type Device struct {
	ID                int64        `json:"id"`
	DeviceID          string       `json:"device_id"`
	AccountToken      string       `json:"account_token"`
	MACAddress        string       `json:"mac_address"`
	DeviceFingerprint string       `json:"device_fingerprint,omitempty"`
	DeviceName        string       `json:"device_name,omitempty"`
	DeviceType        string       `json:"device_type,omitempty"`
	OS                string       `json:"os,omitempty"`
	Status            DeviceStatus `json:"status"`

	// Certificate binding, populated once the device reaches ACTIVE
	CertificateSerial      string     `json:"certificate_serial,omitempty"`
	CertificateFingerprint string     `json:"certificate_fingerprint,omitempty"`
	CertificateExpiresAt   *time.Time `json:"certificate_expires_at,omitempty"`

	// Audit trail
	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	RejectedBy  string     `json:"rejected_by,omitempty"`
	RejectedFor string     `json:"rejected_for,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RevokedBy   string     `json:"revoked_by,omitempty"`
	RevokedFor  string     `json:"revoked_for,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

// HasCertificate reports whether a certificate binding is present
func (d *Device) HasCertificate() bool {
	return d.CertificateSerial != ""
}
