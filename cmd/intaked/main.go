// Command intaked runs the secure form intake gateway: a signed-envelope
// ingestion endpoint gated by rate limiting, origin and CSRF checks, a
// replay window, signature verification, field validation, and
// sanitization, with an audit side channel for every gate outcome.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/thermaworks/intake/pkg/api"
	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/config"
	"github.com/thermaworks/intake/pkg/crypto"
	"github.com/thermaworks/intake/pkg/guard"
	"github.com/thermaworks/intake/pkg/observability"
	"github.com/thermaworks/intake/pkg/pipeline"
	"github.com/thermaworks/intake/pkg/ratelimit"
	"github.com/thermaworks/intake/pkg/store"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	if code := os.Getenv("INTAKE_PROFILE"); code != "" {
		profilesDir := os.Getenv("INTAKE_PROFILES_DIR")
		if profilesDir == "" {
			profilesDir = "profiles"
		}
		profile, err := config.LoadProfile(profilesDir, code)
		if err != nil {
			log.Fatalf("failed to load deployment profile: %v", err)
		}
		profile.Apply(cfg)
		slog.Info("deployment profile applied", "profile", profile.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requests, db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Audit side channel: in-memory buffer, durable table, process log.
	buffer := audit.NewBuffer()
	sink := audit.Fanout{
		buffer,
		audit.NewStoreSink(requests),
		audit.NewSlogSink(slog.Default()),
	}

	var limiter ratelimit.WindowStore
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedisWindow(cfg.RedisAddr, cfg.RedisPassword, 0)
		slog.Info("rate limit state in redis", "addr", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewMemoryWindow()
	}

	var nonces *guard.NonceCache
	if cfg.NonceProtection {
		nonces = guard.NewNonceCache(cfg.ReplayWindow)
		slog.Info("nonce replay protection enabled")
	}

	metrics, err := observability.New(ctx, observability.Config{
		ServiceName:    "intake",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPEndpoint != "" && os.Getenv("OTLP_INSECURE") == "true",
	})
	if err != nil {
		log.Fatalf("failed to init observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	p := pipeline.New(pipeline.Options{
		Limiter:  limiter,
		Policy:   ratelimit.Policy{Window: cfg.RateWindow, Max: cfg.RateMax},
		Origins:  guard.NewOriginGuard(cfg.AllowedOrigins),
		Replay:   guard.NewReplayGuard(cfg.ReplayWindow),
		Nonces:   nonces,
		Verifier: crypto.NewDigestVerifier(cfg.SharedSecret),
		Requests: requests,
		Sink:     sink,
		Observer: metrics,
		Logger:   slog.Default(),
	})

	service, err := api.NewService(p, requests, sink, cfg.MaxBodyBytes, version)
	if err != nil {
		log.Fatalf("failed to init http service: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/submit", service.HandleSubmit)
	mux.HandleFunc("/api/health", service.HandleHealth)

	if cfg.AdminEnabled {
		adminAuth, err := api.NewAdminValidator(cfg.SharedSecret)
		if err != nil {
			log.Fatalf("failed to init admin auth: %v", err)
		}
		mux.Handle("/api/admin/requests", adminAuth.Middleware(http.HandlerFunc(service.HandleAdminRequests)))
		slog.Info("admin listing enabled")
	}

	handler := api.CORSMiddleware(cfg.AllowedOrigins)(
		api.NewTransportLimiter(50, 100).Middleware(mux),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("intake gateway ready", "port", cfg.Port, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down", "buffered_events", buffer.Size())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// openStore connects to Postgres when DATABASE_URL is set and falls back
// to a local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.RequestStore, *sql.DB, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		s := store.NewPostgresStore(db)
		if err := s.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		slog.Info("postgres connected")
		return s, db, nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, err
		}
	}
	s, db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("lite mode: using sqlite", "path", cfg.DBPath)
	return s, db, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
