package api

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quindar/devicetrust/internal/auth"
	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/config"
	"github.com/quindar/devicetrust/internal/db"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/trust"
)

const testAdminToken = "test-admin-token"

type stubIssuer struct {
	count int
}

func (s *stubIssuer) Issue(deviceID, deviceType, macAddress string) (*ca.Certificate, error) {
	s.count++
	return &ca.Certificate{
		SerialNumber: fmt.Sprintf("AAAA-BBBB-CCCC-%04d", s.count),
		ExpiresAt:    time.Now().Add(365 * 24 * time.Hour),
		Fingerprint:  fmt.Sprintf("sha256:stub%04d", s.count),
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	hash, err := auth.HashAdminToken(testAdminToken)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Admin.TokenHash = hash

	deviceRepo := repository.NewDeviceRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	service := trust.NewService(
		database,
		deviceRepo,
		repository.NewRevocationRepository(database.DB),
		&stubIssuer{},
		cfg.Policy.MaxDevicesPerAccount,
		zaptest.NewLogger(t).Sugar(),
	)

	signing := ca.NewSigningContext(cfg.CA.CommonName, cfg.CA.Organization, cfg.CA.Country, cfg.CA.KeyBits, "", "")

	return NewServer(cfg, signing, service, deviceRepo, auditRepo, zaptest.NewLogger(t).Sugar())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{
		"X-Admin-Token": testAdminToken,
		"X-Actor":       "admin-jo",
	}
}

func registerDevice(t *testing.T, s *Server, mac string) string {
	t.Helper()

	w := doJSON(t, s, http.MethodPost, "/v1/devices/register", map[string]string{
		"account_token":      "acct-1",
		"mac_address":        mac,
		"device_fingerprint": "fp-" + mac,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Status   string `json:"status"`
		DeviceID string `json:"device_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending_approval", resp.Status)
	return resp.DeviceID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	// Missing required fields
	w := doJSON(t, s, http.MethodPost, "/v1/devices/register", map[string]string{
		"account_token": "acct-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed MAC
	w = doJSON(t, s, http.MethodPost, "/v1/devices/register", map[string]string{
		"account_token": "acct-1",
		"mac_address":   "not-a-mac",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestLifecycle_RegisterApproveValidateRevoke(t *testing.T) {
	s := newTestServer(t)

	deviceID := registerDevice(t, s, "AA:BB:CC:DD:EE:FF")

	// Approve requires admin auth
	w := doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/approve", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/approve", nil, map[string]string{
		"X-Admin-Token": "wrong-token",
		"X-Actor":       "admin-jo",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/approve", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var approveResp struct {
		Status      string `json:"status"`
		Certificate struct {
			SerialNumber string `json:"serial_number"`
		} `json:"certificate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approveResp))
	assert.Equal(t, "active", approveResp.Status)
	serial := approveResp.Certificate.SerialNumber
	require.NotEmpty(t, serial)

	// Validate succeeds for the bound MAC and fingerprint
	w = doJSON(t, s, http.MethodPost, "/v1/validate", map[string]string{
		"certificate_serial": serial,
		"mac_address":        "aa:bb:cc:dd:ee:ff",
		"device_fingerprint": "fp-AA:BB:CC:DD:EE:FF",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var verdict trust.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.True(t, verdict.Valid)
	assert.Equal(t, deviceID, verdict.DeviceID)

	// Revoke, then the same credentials are refused
	w = doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/revoke",
		map[string]string{"reason": "compromise"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, s, http.MethodPost, "/v1/validate", map[string]string{
		"certificate_serial": serial,
		"mac_address":        "AA:BB:CC:DD:EE:FF",
		"device_fingerprint": "fp-AA:BB:CC:DD:EE:FF",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.False(t, verdict.Valid)
	assert.Equal(t, "certificate revoked", verdict.Reason)

	// And the CRL lists the serial
	w = doJSON(t, s, http.MethodGet, "/v1/crl", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), serial)
}

func TestReject_RequiresActor(t *testing.T) {
	s := newTestServer(t)

	deviceID := registerDevice(t, s, "AA:BB:CC:DD:EE:FF")

	w := doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/reject",
		map[string]string{"reason": "unknown hardware"},
		map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "X-Actor")

	w = doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/reject",
		map[string]string{"reason": "unknown hardware"}, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestApprove_UnknownDevice(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/devices/DEV-MISSING1/approve", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprove_AlreadyActive(t *testing.T) {
	s := newTestServer(t)

	deviceID := registerDevice(t, s, "AA:BB:CC:DD:EE:FF")
	w := doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/approve", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/devices/"+deviceID+"/approve", nil, adminHeaders())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestGetDevice(t *testing.T) {
	s := newTestServer(t)

	deviceID := registerDevice(t, s, "AA:BB:CC:DD:EE:FF")

	w := doJSON(t, s, http.MethodGet, "/v1/devices/"+deviceID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), deviceID)

	w = doJSON(t, s, http.MethodGet, "/v1/devices/DEV-MISSING1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminListings(t *testing.T) {
	s := newTestServer(t)

	deviceID := registerDevice(t, s, "AA:BB:CC:DD:EE:FF")

	// Auth required
	w := doJSON(t, s, http.MethodGet, "/v1/admin/devices/pending", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodGet, "/v1/admin/devices/pending", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), deviceID)

	w = doJSON(t, s, http.MethodGet, "/v1/admin/accounts/acct-1/devices", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), deviceID)

	// The registration itself is on the audit trail
	w = doJSON(t, s, http.MethodGet, "/v1/admin/audit?action=device_register", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), deviceID)
}

func TestAuthFailuresAreAudited(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/v1/admin/devices/pending", nil, map[string]string{
		"X-Admin-Token": "wrong-token",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodGet, "/v1/admin/audit?action=auth_failed", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid admin token")
}

func TestCACertificate(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/v1/ca/certificate", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	block, _ := pem.Decode(w.Body.Bytes())
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)
}
