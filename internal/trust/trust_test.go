package trust

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/db"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
)

// stubIssuer avoids real key generation in workflow tests; certificate
// construction itself is covered by the ca package tests.
type stubIssuer struct {
	err   error
	count int
}

func (s *stubIssuer) Issue(deviceID, deviceType, macAddress string) (*ca.Certificate, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.count++
	return &ca.Certificate{
		SerialNumber:       fmt.Sprintf("AAAA-BBBB-CCCC-%04d", s.count),
		ExpiresAt:          time.Now().Add(365 * 24 * time.Hour),
		Fingerprint:        fmt.Sprintf("sha256:stub%04d", s.count),
		KeyAlgorithm:       "RSA-2048",
		SignatureAlgorithm: "SHA256-RSA",
		SubjectDN:          fmt.Sprintf("CN=%s,OU=%s", deviceID, deviceType),
		IssuerDN:           "CN=Test Device CA",
	}, nil
}

func newTestService(t *testing.T, issuer CertificateIssuer) (*Service, *db.DB) {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database))

	service := NewService(
		database,
		repository.NewDeviceRepository(database.DB),
		repository.NewRevocationRepository(database.DB),
		issuer,
		5,
		zaptest.NewLogger(t).Sugar(),
	)

	return service, database
}

func registerDevice(t *testing.T, s *Service, account, mac string) *models.Device {
	t.Helper()

	device, err := s.RequestRegistration(RegisterRequest{
		AccountToken:      account,
		MACAddress:        mac,
		DeviceFingerprint: "fp-" + mac,
		DeviceName:        "Test Device",
		DeviceType:        "tablet",
		OS:                "Android 14",
	})
	require.NoError(t, err)
	return device
}

func registerActiveDevice(t *testing.T, s *Service, account, mac string) (*models.Device, *ca.Certificate) {
	t.Helper()

	device := registerDevice(t, s, account, mac)
	cert, err := s.Approve(device.DeviceID, "admin")
	require.NoError(t, err)

	refreshed, err := s.GetDevice(device.DeviceID)
	require.NoError(t, err)
	return refreshed, cert
}

// expireCertificate backdates a device's certificate expiry
func expireCertificate(t *testing.T, database *db.DB, deviceID string) {
	t.Helper()

	_, err := database.Exec(
		`UPDATE devices SET certificate_expires_at = ? WHERE device_id = ?`,
		time.Now().Add(-time.Hour), deviceID,
	)
	require.NoError(t, err)
}
