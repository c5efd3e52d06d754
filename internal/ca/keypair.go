package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// caCertValidity is the lifetime of the self-signed CA certificate
const caCertValidity = 10 * 365 * 24 * time.Hour

// SigningContext owns the process-wide CA signing key pair. The pair is
// loaded from disk when present, generated and saved otherwise, lazily
// on first issuance, and reused for every certificate signed afterward.
// Initialization is idempotent: concurrent first calls serialize on the
// mutex, and only the first winner loads or generates a key. Persisting
// the pair lets every process against the same state (server, admin CLI)
// sign with the same CA identity. Empty paths keep the pair in memory
// for the process lifetime only.
type SigningContext struct {
	identity pkix.Name
	keyBits  int
	keyPath  string
	certPath string

	mu      sync.Mutex
	key     *rsa.PrivateKey
	caCert  *x509.Certificate
	created time.Time
}

// NewSigningContext creates an uninitialized signing context for the
// given CA identity. No key material is loaded or generated until
// first use.
func NewSigningContext(commonName, organization, country string, keyBits int, keyPath, certPath string) *SigningContext {
	identity := pkix.Name{CommonName: commonName}
	if organization != "" {
		identity.Organization = []string{organization}
	}
	if country != "" {
		identity.Country = []string{country}
	}

	return &SigningContext{
		identity: identity,
		keyBits:  keyBits,
		keyPath:  keyPath,
		certPath: certPath,
	}
}

// Initialized reports whether the CA key pair exists yet
func (c *SigningContext) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key != nil
}

// Identity returns the CA distinguished name
func (c *SigningContext) Identity() pkix.Name {
	return c.identity
}

// CACertificate returns the DER-encoded self-signed CA certificate,
// initializing the key pair if needed.
func (c *SigningContext) CACertificate() ([]byte, error) {
	_, cert, err := c.signingPair()
	if err != nil {
		return nil, err
	}
	return cert.Raw, nil
}

// signingPair returns the CA private key and certificate, loading or
// generating them on first call. A second call is a no-op returning the
// same pair.
func (c *SigningContext) signingPair() (*rsa.PrivateKey, *x509.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil {
		return c.key, c.caCert, nil
	}

	if c.keyPath != "" {
		if _, err := os.Stat(c.keyPath); err == nil {
			if err := c.loadPair(); err != nil {
				return nil, nil, err
			}
			return c.key, c.caCert, nil
		}
	}

	if err := c.generatePair(); err != nil {
		return nil, nil, err
	}

	if c.keyPath != "" {
		if err := c.savePair(); err != nil {
			return nil, nil, err
		}
	}

	return c.key, c.caCert, nil
}

// loadPair reads the CA key and certificate from disk
func (c *SigningContext) loadPair() error {
	keyBytes, err := os.ReadFile(c.keyPath)
	if err != nil {
		return fmt.Errorf("failed to read CA key: %w", err)
	}

	keyBlock, _ := pem.Decode(keyBytes)
	if keyBlock == nil {
		return fmt.Errorf("failed to parse CA key: no PEM block in %s", c.keyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse CA key: %w", err)
	}

	certBytes, err := os.ReadFile(c.certPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}

	certBlock, _ := pem.Decode(certBytes)
	if certBlock == nil {
		return fmt.Errorf("failed to parse CA certificate: no PEM block in %s", c.certPath)
	}
	caCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	c.key = key
	c.caCert = caCert
	c.created = caCert.NotBefore
	return nil
}

// generatePair creates a fresh CA key and self-signed certificate
func (c *SigningContext) generatePair() error {
	key, err := rsa.GenerateKey(rand.Reader, c.keyBits)
	if err != nil {
		return cryptoErr(OpKeyGen, err)
	}

	serial, err := randomSerialInt()
	if err != nil {
		return cryptoErr(OpSerial, err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               c.identity,
		NotBefore:             now,
		NotAfter:              now.Add(caCertValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return cryptoErr(OpSign, err)
	}

	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return cryptoErr(OpEncode, err)
	}

	c.key = key
	c.caCert = caCert
	c.created = now
	return nil
}

// savePair writes the CA key and certificate to disk, key with
// restrictive permissions
func (c *SigningContext) savePair() error {
	if err := os.MkdirAll(filepath.Dir(c.keyPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for CA key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.certPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for CA certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(c.key),
	})
	if err := os.WriteFile(c.keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: c.caCert.Raw,
	})
	if err := os.WriteFile(c.certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write CA certificate: %w", err)
	}

	return nil
}

// randomSerialInt generates a positive 128-bit random serial number
func randomSerialInt() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, err
	}
	return serial, nil
}
