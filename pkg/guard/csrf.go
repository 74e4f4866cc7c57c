package guard

// csrfTokenLength is the exact token length the client-side issuer
// produces: 32 random bytes, hex encoded.
const csrfTokenLength = 64

// CheckCSRFShape accepts only non-empty strings of exactly 64 lowercase
// hex characters.
//
// This is a shape check, not a binding proof: it verifies format only and
// says nothing about whether the token was issued to this client or
// session. Callers must not rely on it for anti-forgery guarantees beyond
// format filtering.
func CheckCSRFShape(token string) bool {
	if len(token) != csrfTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
