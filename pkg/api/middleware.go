package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for the intake
// endpoints. An empty allow-list permits all origins (development mode);
// the pipeline's origin gate stays in effect regardless.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && isOriginAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", "Retry-After")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true // dev mode: allow all
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// TransportLimiter is a coarse per-IP token-bucket backstop in front of
// the whole mux. It is deliberately looser than the pipeline's
// sliding-window gate: its job is to shed floods before they reach any
// handler, not to enforce the submission quota.
type TransportLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTransportLimiter creates a limiter allowing rps requests per second
// with the given burst per client IP.
func NewTransportLimiter(rps int, burst int) *TransportLimiter {
	tl := &TransportLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go tl.cleanupVisitors()
	return tl
}

func (tl *TransportLimiter) getVisitor(ip string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	v, exists := tl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(tl.rps, tl.burst)
		tl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes stale visitor entries to prevent memory leaks.
// Checks every minute, removes entries older than 3 minutes.
func (tl *TransportLimiter) cleanupVisitors() {
	for {
		time.Sleep(1 * time.Minute)
		tl.mu.Lock()
		for ip, v := range tl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(tl.visitors, ip)
			}
		}
		tl.mu.Unlock()
	}
}

// Middleware returns a Handler that enforces the backstop limit.
func (tl *TransportLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}

		if !tl.getVisitor(ip).Allow() {
			WriteTooManyRequests(w, 5)
			return
		}

		next.ServeHTTP(w, r)
	})
}
