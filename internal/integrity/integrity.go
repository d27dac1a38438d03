// Package integrity computes and compares content digests used to verify
// byte-for-byte fidelity across copy and compression round trips.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tiervault/tiervault/pkg/errors"
)

// Digest returns the hex-encoded SHA-256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of data and compares it to expected.
// A mismatch is reported as DIGEST_MISMATCH with both digests attached.
func Verify(data []byte, expected string) error {
	actual := Digest(data)
	if actual != expected {
		return errors.New(errors.ErrCodeDigestMismatch, "content digest does not match").
			WithContext("expected", expected).
			WithContext("actual", actual)
	}
	return nil
}

// Equal reports whether two digests refer to identical content. Empty
// digests never compare equal; an unknown digest proves nothing.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b
}
