package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/quindar/devicetrust/pkg/certutil"
)

const (
	serialBytes = 16 // 128 bits of entropy

	signatureAlgorithm = x509.SHA256WithRSA
)

// Certificate holds every artifact of a successful issuance that the
// caller needs for storage and client installation.
type Certificate struct {
	SerialNumber       string    `json:"serial_number"`
	ExpiresAt          time.Time `json:"expires_at"`
	Fingerprint        string    `json:"fingerprint"`
	KeyAlgorithm       string    `json:"key_algorithm"`
	SignatureAlgorithm string    `json:"signature_algorithm"`
	PublicKey          string    `json:"public_key"`      // base64 PKIX DER
	CertificateDER     string    `json:"certificate_der"` // base64 DER
	SubjectDN          string    `json:"subject_dn"`
	IssuerDN           string    `json:"issuer_dn"`
}

// Issuer produces signed X.509 client certificates for approved devices
type Issuer struct {
	signing       *SigningContext
	deviceKeyBits int
	validityDays  int
}

// NewIssuer creates a certificate issuer backed by the given signing context
func NewIssuer(signing *SigningContext, deviceKeyBits, validityDays int) *Issuer {
	return &Issuer{
		signing:       signing,
		deviceKeyBits: deviceKeyBits,
		validityDays:  validityDays,
	}
}

// Issue generates a key pair for the device and signs an X.509v3 client
// certificate with the CA key. Any failure aborts the whole issuance;
// no partial artifacts are returned.
func (i *Issuer) Issue(deviceID, deviceType, macAddress string) (*Certificate, error) {
	caKey, caCert, err := i.signing.signingPair()
	if err != nil {
		return nil, err
	}

	deviceKey, err := rsa.GenerateKey(rand.Reader, i.deviceKeyBits)
	if err != nil {
		return nil, cryptoErr(OpKeyGen, err)
	}

	serialInt, serialDisplay, err := newSerial()
	if err != nil {
		return nil, err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&deviceKey.PublicKey)
	if err != nil {
		return nil, cryptoErr(OpEncode, err)
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(i.validityDays) * 24 * time.Hour)

	template := &x509.Certificate{
		SerialNumber: serialInt,
		Subject: pkix.Name{
			CommonName:         deviceID,
			OrganizationalUnit: []string{deviceType},
			SerialNumber:       strings.ReplaceAll(macAddress, ":", ""),
		},
		NotBefore:             now,
		NotAfter:              expiresAt,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          subjectKeyID(pubDER),
		SignatureAlgorithm:    signatureAlgorithm,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &deviceKey.PublicKey, caKey)
	if err != nil {
		return nil, cryptoErr(OpSign, err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, cryptoErr(OpEncode, err)
	}

	return &Certificate{
		SerialNumber:       serialDisplay,
		ExpiresAt:          expiresAt,
		Fingerprint:        certutil.Fingerprint(der),
		KeyAlgorithm:       fmt.Sprintf("RSA-%d", i.deviceKeyBits),
		SignatureAlgorithm: signatureAlgorithm.String(),
		PublicKey:          base64.StdEncoding.EncodeToString(pubDER),
		CertificateDER:     base64.StdEncoding.EncodeToString(der),
		SubjectDN:          parsed.Subject.String(),
		IssuerDN:           parsed.Issuer.String(),
	}, nil
}

// newSerial draws a fresh 128-bit random serial number. Uniqueness is
// probabilistic via entropy; no registry scan is performed.
func newSerial() (*big.Int, string, error) {
	raw := make([]byte, serialBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", cryptoErr(OpSerial, err)
	}
	return new(big.Int).SetBytes(raw), formatSerial(raw), nil
}

// formatSerial renders raw serial bytes as uppercase hex in 4-character
// groups, e.g. "A1B2-C3D4-...".
func formatSerial(raw []byte) string {
	hexStr := strings.ToUpper(fmt.Sprintf("%x", raw))
	groups := make([]string, 0, len(hexStr)/4)
	for i := 0; i < len(hexStr); i += 4 {
		end := i + 4
		if end > len(hexStr) {
			end = len(hexStr)
		}
		groups = append(groups, hexStr[i:end])
	}
	return strings.Join(groups, "-")
}

// subjectKeyID derives the Subject Key Identifier extension value from
// the device public key bytes.
func subjectKeyID(pubDER []byte) []byte {
	sum := sha256.Sum256(pubDER)
	return sum[:20]
}
