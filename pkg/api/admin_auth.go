package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	intakecrypto "github.com/thermaworks/intake/pkg/crypto"
)

// adminKeyPurpose is the HKDF domain-separation label for the admin token
// key, keeping it independent from the envelope digest scheme.
const adminKeyPurpose = "admin-token"

// AdminClaims are the claims expected on admin bearer tokens.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminValidator validates admin bearer tokens. Tokens are HMAC-signed
// with a key derived from the shared secret.
type AdminValidator struct {
	key []byte
}

// NewAdminValidator derives the token key from the shared secret.
func NewAdminValidator(sharedSecret string) (*AdminValidator, error) {
	key, err := intakecrypto.DeriveKey(sharedSecret, adminKeyPurpose)
	if err != nil {
		return nil, fmt.Errorf("admin validator: %w", err)
	}
	return &AdminValidator{key: key}, nil
}

// Validate parses and validates a token string, requiring the admin role.
func (v *AdminValidator) Validate(tokenStr string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Role != "admin" {
		return nil, fmt.Errorf("missing admin role")
	}
	return claims, nil
}

// IssueToken mints an admin token, for operator tooling and tests.
func (v *AdminValidator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: "admin",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// Middleware enforces admin bearer auth on the wrapped handler.
func (v *AdminValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			WriteUnauthorized(w, "")
			return
		}
		if _, err := v.Validate(strings.TrimPrefix(header, "Bearer ")); err != nil {
			WriteForbidden(w, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
