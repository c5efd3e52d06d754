package trust

import "errors"

// Workflow errors returned to the admin/API layer for user-facing
// messaging. Validation outcomes are not errors; see Verdict.
var (
	// ErrInvalidMAC indicates a malformed MAC address in a request
	ErrInvalidMAC = errors.New("invalid MAC address format")

	// ErrDeviceConflict indicates an active device already holds the MAC
	ErrDeviceConflict = errors.New("an active device is already registered with this MAC address")

	// ErrLimitExceeded indicates the account device quota is reached
	ErrLimitExceeded = errors.New("account device limit reached")

	// ErrDeviceNotFound indicates the referenced device does not exist
	ErrDeviceNotFound = errors.New("device not found")

	// ErrInvalidState indicates the requested lifecycle transition is
	// not permitted from the device's current status
	ErrInvalidState = errors.New("transition not permitted from current device status")
)
