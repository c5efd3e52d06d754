package certutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint calculates the SHA-256 fingerprint of DER-encoded
// certificate bytes, tagged with the algorithm for future-proofing.
func Fingerprint(der []byte) string {
	hash := sha256.Sum256(der)
	return fmt.Sprintf("sha256:%s", hex.EncodeToString(hash[:]))
}

// FingerprintMatches checks if two DER blobs have the same fingerprint
func FingerprintMatches(der1, der2 []byte) bool {
	return Fingerprint(der1) == Fingerprint(der2)
}

// SerialChecksum computes an order-sensitive digest over a list of
// certificate serial numbers. A consumer holding a CRL copy can compare
// checksums to detect a stale or corrupted list without transferring it.
func SerialChecksum(serials []string) string {
	hash := sha256.Sum256([]byte(strings.Join(serials, "")))
	return hex.EncodeToString(hash[:])
}
