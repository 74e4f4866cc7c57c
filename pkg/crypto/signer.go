// Package crypto implements the envelope digest scheme: a SHA-256 digest
// over the canonicalized payload, the timestamp text, the nonce, and the
// shared secret, hex-encoded.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/thermaworks/intake/pkg/canonicalize"
)

// Signer produces envelope signatures. The server uses it only in tests
// and tooling; production clients sign on their side with the same scheme.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer bound to the shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the hex digest for the given payload, timestamp, and nonce.
func (s *Signer) Sign(payload interface{}, timestamp, nonce string) (string, error) {
	material, err := signingMaterial(payload, timestamp, nonce, s.secret)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(material)
	return hex.EncodeToString(sum[:]), nil
}

// signingMaterial assembles canonical(payload) || timestamp || nonce || secret.
func signingMaterial(payload interface{}, timestamp, nonce string, secret []byte) ([]byte, error) {
	canonical, err := canonicalize.Canonical(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	material := make([]byte, 0, len(canonical)+len(timestamp)+len(nonce)+len(secret))
	material = append(material, canonical...)
	material = append(material, timestamp...)
	material = append(material, nonce...)
	material = append(material, secret...)
	return material, nil
}
