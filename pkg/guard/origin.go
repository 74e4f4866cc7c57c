// Package guard implements the stateless request gates that run ahead of
// signature verification: origin allow-listing, CSRF token shape, replay
// window, and the optional seen-nonce cache.
package guard

// OriginGuard checks the declared request origin against an allow-list.
//
// The Origin header is client-controlled and trivially spoofable, so this
// gate is advisory defense-in-depth only; the trust boundary is the
// envelope signature. An empty list allows every origin (development
// mode), matching the CORS middleware's behavior.
type OriginGuard struct {
	allowed map[string]struct{}
}

// NewOriginGuard creates a guard for the given allow-list.
func NewOriginGuard(origins []string) *OriginGuard {
	g := &OriginGuard{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		g.allowed[o] = struct{}{}
	}
	return g
}

// Check accepts an empty origin (not all clients send one) and any origin
// present in the allow-list.
func (g *OriginGuard) Check(origin string) bool {
	if origin == "" {
		return true
	}
	if len(g.allowed) == 0 {
		return true
	}
	_, ok := g.allowed[origin]
	return ok
}
