package models

import "time"

// RevocationType categorizes why a certificate was revoked
type RevocationType string

const (
	RevocationSecurityConcern RevocationType = "SECURITY_CONCERN"
	RevocationDeviceRemoved   RevocationType = "DEVICE_REMOVED"
	RevocationExpiredReplaced RevocationType = "EXPIRED_REPLACED"
)

// RevocationEntry records a revoked certificate serial. Entries are
// immutable and permanent: a serial, once listed, is never un-revoked.
type RevocationEntry struct {
	ID                     int64          `json:"id"`
	SerialNumber           string         `json:"serial_number"`
	DeviceID               string         `json:"device_id"`
	AccountToken           string         `json:"account_token"`
	RevokedAt              time.Time      `json:"revoked_at"`
	RevokedBy              string         `json:"revoked_by"`
	Reason                 string         `json:"reason,omitempty"`
	RevocationType         RevocationType `json:"revocation_type"`
	CertificateFingerprint string         `json:"certificate_fingerprint,omitempty"`
	OriginalExpiresAt      *time.Time     `json:"original_expires_at,omitempty"`
}
