package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// SharedSecret is the static API secret used for envelope signatures.
	// Supplied externally; the service never generates or rotates it.
	SharedSecret string

	// Sliding-window rate limit for the submit pipeline.
	RateWindow time.Duration
	RateMax    int

	// ReplayWindow is the maximum tolerated skew between the client
	// timestamp and server time.
	ReplayWindow time.Duration

	// NonceProtection enables the seen-nonce cache. Off by default: the
	// signature scheme includes a nonce but the observed protocol does not
	// deduplicate it.
	NonceProtection bool

	// DatabaseURL selects Postgres when set; otherwise the service falls
	// back to a local SQLite file at DBPath.
	DatabaseURL string
	DBPath      string

	// RedisAddr, when set, moves rate-limit state to Redis so multiple
	// instances share one window.
	RedisAddr     string
	RedisPassword string

	AllowedOrigins []string

	// AdminEnabled gates the read-only admin listing endpoint. Admin
	// requests carry a bearer token signed with a key derived from
	// SharedSecret.
	AdminEnabled bool

	OTLPEndpoint string

	MaxBodyBytes int64
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Port:            envOr("PORT", "8080"),
		LogLevel:        envOr("LOG_LEVEL", "INFO"),
		SharedSecret:    envOr("INTAKE_SECRET", "your-secret-api-key-change-this-in-production"),
		RateWindow:      envDuration("RATE_WINDOW", 5*time.Minute),
		RateMax:         envInt("RATE_MAX", 10),
		ReplayWindow:    envDuration("REPLAY_WINDOW", 5*time.Minute),
		NonceProtection: os.Getenv("NONCE_PROTECTION") == "true",
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBPath:          envOr("DB_PATH", "data/intake.db"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		AdminEnabled:    os.Getenv("ADMIN_ENABLED") == "true",
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
		MaxBodyBytes:    int64(envInt("MAX_BODY_BYTES", 1<<20)),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envDuration reads a duration. Bare integers are treated as seconds for
// compatibility with the original deployment's env files.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
