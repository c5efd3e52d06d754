package models

import "time"

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	Details   string    `json:"details,omitempty"` // JSON
}

// Audit action constants
const (
	ActionDeviceRegister = "device_register"
	ActionDeviceApprove  = "device_approve"
	ActionDeviceReject   = "device_reject"
	ActionDeviceRevoke   = "device_revoke"
	ActionDeviceRemove   = "device_remove"
	ActionDeviceValidate = "device_validate"
	ActionAuthFailed     = "auth_failed"
)
