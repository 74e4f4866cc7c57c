package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Verifier defines the interface for envelope signature verification.
type Verifier interface {
	Verify(payload interface{}, signature, timestamp, nonce string) bool
}

// DigestVerifier implements Verifier with the shared-secret digest scheme.
type DigestVerifier struct {
	secret []byte
}

// NewDigestVerifier creates a verifier bound to the shared secret.
func NewDigestVerifier(secret string) *DigestVerifier {
	return &DigestVerifier{secret: []byte(secret)}
}

// Verify recomputes the expected digest and compares it to the supplied
// signature in constant time. Any mismatch, including a malformed or
// wrong-length signature, is a verification failure.
func (v *DigestVerifier) Verify(payload interface{}, signature, timestamp, nonce string) bool {
	if signature == "" {
		return false
	}
	material, err := signingMaterial(payload, timestamp, nonce, v.secret)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(material)
	expected := hex.EncodeToString(sum[:])

	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
