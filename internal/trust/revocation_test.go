package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quindar/devicetrust/internal/models"
	"github.com/quindar/devicetrust/pkg/certutil"
)

func TestRevoke_ActiveDevice(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, cert := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")

	result, err := s.Revoke(device.DeviceID, "admin-jo", "key compromise suspected")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRevoked, result.Status)
	assert.Equal(t, cert.SerialNumber, result.SerialNumber)
	assert.True(t, result.LedgerUpdated)

	refreshed, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, refreshed.Status)
	assert.Equal(t, "admin-jo", refreshed.RevokedBy)
	assert.Equal(t, "key compromise suspected", refreshed.RevokedFor)
	require.NotNil(t, refreshed.RevokedAt)

	crl, err := s.GetCRL()
	require.NoError(t, err)
	require.Len(t, crl.Entries, 1)

	entry := crl.Entries[0]
	assert.Equal(t, cert.SerialNumber, entry.SerialNumber)
	assert.Equal(t, device.DeviceID, entry.DeviceID)
	assert.Equal(t, models.RevocationSecurityConcern, entry.RevocationType)
	assert.Equal(t, "admin-jo", entry.RevokedBy)
	assert.Equal(t, cert.Fingerprint, entry.CertificateFingerprint)
}

func TestRevoke_Idempotent(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, _ := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")

	first, err := s.Revoke(device.DeviceID, "admin", "compromise")
	require.NoError(t, err)
	assert.True(t, first.LedgerUpdated)

	second, err := s.Revoke(device.DeviceID, "admin", "compromise again")
	require.NoError(t, err)
	assert.False(t, second.LedgerUpdated, "repeat revocation must not append a second entry")

	crl, err := s.GetCRL()
	require.NoError(t, err)
	assert.Len(t, crl.Entries, 1)
}

func TestRevoke_PendingDevice(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device := registerDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")

	_, err := s.Revoke(device.DeviceID, "admin", "nope")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRevoke_UnknownDevice(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	_, err := s.Revoke("DEV-DOESNOTEX", "admin", "nope")
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestRemove_ActiveDevice(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, cert := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")

	result, err := s.Remove(device.DeviceID, "owner")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRemoved, result.Status)
	assert.True(t, result.LedgerUpdated)

	refreshed, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemoved, refreshed.Status)

	crl, err := s.GetCRL()
	require.NoError(t, err)
	require.Len(t, crl.Entries, 1)
	assert.Equal(t, cert.SerialNumber, crl.Entries[0].SerialNumber)
	assert.Equal(t, models.RevocationDeviceRemoved, crl.Entries[0].RevocationType)
}

func TestRevocation_IsPermanent(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, _ := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")
	_, err := s.Revoke(device.DeviceID, "admin", "compromise")
	require.NoError(t, err)

	// No path leads back to ACTIVE
	_, err = s.Approve(device.DeviceID, "admin")
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = s.Reject(device.DeviceID, "admin", "late")
	require.ErrorIs(t, err, ErrInvalidState)

	// Removing a revoked device is tolerated but neither the ledger
	// nor the recorded terminal state changes
	result, err := s.Remove(device.DeviceID, "owner")
	require.NoError(t, err)
	assert.False(t, result.LedgerUpdated)
	assert.Equal(t, models.StatusRevoked, result.Status)

	refreshed, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, refreshed.Status)
}

func TestRevoke_RepeatPreservesFirstRecord(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, _ := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")
	_, err := s.Revoke(device.DeviceID, "admin-first", "key compromise")
	require.NoError(t, err)

	first, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)

	// A later removal attempt by a different actor must not rewrite
	// who revoked the device, when, or why
	_, err = s.Remove(device.DeviceID, "owner")
	require.NoError(t, err)

	after, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, after.Status)
	assert.Equal(t, "admin-first", after.RevokedBy)
	assert.Equal(t, "key compromise", after.RevokedFor)
	require.NotNil(t, after.RevokedAt)
	assert.True(t, after.RevokedAt.Equal(*first.RevokedAt))
}

func TestRevoke_CompletesOnSingleConnectionPool(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	device, _ := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")

	// The pool holds a single connection and the revocation transaction
	// owns it; the ledger lookup must run inside that transaction or
	// the call blocks forever waiting for a free connection.
	done := make(chan error, 1)
	go func() {
		_, err := s.Revoke(device.DeviceID, "admin", "compromise")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("revocation did not complete; ledger lookup starved the connection pool")
	}

	crl, err := s.GetCRL()
	require.NoError(t, err)
	require.Len(t, crl.Entries, 1)
}

func TestGetCRL_OrderingAndChecksum(t *testing.T) {
	s, database := newTestService(t, &stubIssuer{})

	var deviceIDs []string
	for i, mac := range []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:03"} {
		device, _ := registerActiveDevice(t, s, "acct-1", mac)
		deviceIDs = append(deviceIDs, device.DeviceID)

		_, err := s.Revoke(device.DeviceID, "admin", "compromise")
		require.NoError(t, err)

		// Spread revocation times so the ordering is unambiguous
		_, err = database.Exec(
			`UPDATE revocations SET revoked_at = ? WHERE device_id = ?`,
			time.Now().Add(time.Duration(i)*time.Minute), device.DeviceID,
		)
		require.NoError(t, err)
	}

	crl, err := s.GetCRL()
	require.NoError(t, err)
	require.Len(t, crl.Entries, 3)

	// Most recent revocation first
	assert.Equal(t, deviceIDs[2], crl.Entries[0].DeviceID)
	assert.Equal(t, deviceIDs[1], crl.Entries[1].DeviceID)
	assert.Equal(t, deviceIDs[0], crl.Entries[2].DeviceID)

	serials := make([]string, len(crl.Entries))
	for i, e := range crl.Entries {
		serials[i] = e.SerialNumber
	}
	assert.Equal(t, certutil.SerialChecksum(serials), crl.Checksum)
	assert.WithinDuration(t, time.Now(), crl.GeneratedAt, time.Minute)
}

func TestGetCRL_ChecksumChangesWithLedger(t *testing.T) {
	s, _ := newTestService(t, &stubIssuer{})

	empty, err := s.GetCRL()
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	device, _ := registerActiveDevice(t, s, "acct-1", "AA:BB:CC:DD:EE:FF")
	_, err = s.Revoke(device.DeviceID, "admin", "compromise")
	require.NoError(t, err)

	updated, err := s.GetCRL()
	require.NoError(t, err)
	assert.NotEqual(t, empty.Checksum, updated.Checksum)
}
