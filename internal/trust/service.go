package trust

import (
	"crypto/rand"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/db"
	"github.com/quindar/devicetrust/internal/db/repository"
)

// CertificateIssuer produces signed device certificates. Satisfied by
// *ca.Issuer.
type CertificateIssuer interface {
	Issue(deviceID, deviceType, macAddress string) (*ca.Certificate, error)
}

// Service implements the device trust workflows: registration,
// approval, revocation, CRL generation, and request-time validation.
type Service struct {
	db          *db.DB
	devices     *repository.DeviceRepository
	revocations *repository.RevocationRepository
	issuer      CertificateIssuer
	maxDevices  int
	whitelist   macWhitelist
	log         *zap.SugaredLogger
}

// NewService creates the trust service
func NewService(
	database *db.DB,
	devices *repository.DeviceRepository,
	revocations *repository.RevocationRepository,
	issuer CertificateIssuer,
	maxDevicesPerAccount int,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		db:          database,
		devices:     devices,
		revocations: revocations,
		issuer:      issuer,
		maxDevices:  maxDevicesPerAccount,
		log:         log,
	}
}

// whitelistContains answers whitelist membership, rebuilding the
// snapshot from the device registry when it has been invalidated.
func (s *Service) whitelistContains(mac string) (bool, error) {
	if found, ok := s.whitelist.lookup(mac); ok {
		return found, nil
	}

	gen := s.whitelist.generation()
	macs, err := s.devices.ListActiveMACs()
	if err != nil {
		return false, fmt.Errorf("failed to rebuild MAC whitelist: %w", err)
	}
	s.whitelist.replace(macs, gen)

	// answer from the registry read itself; whether the snapshot was
	// installed or discarded only affects later lookups
	for _, m := range macs {
		if m == mac {
			return true, nil
		}
	}
	return false, nil
}

// newDeviceID generates a process-unique opaque device identifier
func newDeviceID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate device id: %w", err)
	}
	return fmt.Sprintf("DEV-%s", strings.ToUpper(fmt.Sprintf("%x", raw))), nil
}
