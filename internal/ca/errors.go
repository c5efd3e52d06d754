package ca

import "fmt"

// CryptoOp identifies the cryptographic operation that failed
type CryptoOp string

const (
	OpKeyGen CryptoOp = "key_generation"
	OpSerial CryptoOp = "serial_generation"
	OpSign   CryptoOp = "certificate_signing"
	OpEncode CryptoOp = "certificate_encoding"
)

// CryptoError reports a failure at the cryptographic layer. It is fatal
// to the triggering call and is never downgraded to a validation result.
type CryptoError struct {
	Op  CryptoOp
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto failure during %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

func cryptoErr(op CryptoOp, err error) error {
	return &CryptoError{Op: op, Err: err}
}
