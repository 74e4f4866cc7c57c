package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaworks/intake/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.RateWindow)
	assert.Equal(t, 10, cfg.RateMax)
	assert.Equal(t, 5*time.Minute, cfg.ReplayWindow)
	assert.False(t, cfg.NonceProtection)
	assert.False(t, cfg.AdminEnabled)
	assert.Equal(t, "data/intake.db", cfg.DBPath)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INTAKE_SECRET", "deployed-secret")
	t.Setenv("RATE_MAX", "25")
	t.Setenv("NONCE_PROTECTION", "true")
	t.Setenv("ADMIN_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "deployed-secret", cfg.SharedSecret)
	assert.Equal(t, 25, cfg.RateMax)
	assert.True(t, cfg.NonceProtection)
	assert.True(t, cfg.AdminEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_DurationFormats(t *testing.T) {
	t.Run("bare integer means seconds", func(t *testing.T) {
		t.Setenv("RATE_WINDOW", "120")
		assert.Equal(t, 2*time.Minute, config.Load().RateWindow)
	})

	t.Run("go duration syntax", func(t *testing.T) {
		t.Setenv("REPLAY_WINDOW", "90s")
		assert.Equal(t, 90*time.Second, config.Load().ReplayWindow)
	})

	t.Run("garbage falls back to default", func(t *testing.T) {
		t.Setenv("RATE_WINDOW", "soon")
		assert.Equal(t, 5*time.Minute, config.Load().RateWindow)
	})
}

func writeProfile(t *testing.T, dir, code, content string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+code+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "eu", `
name: Europe
code: eu
allowed_origins:
  - https://eu.example.com
limits:
  rate_window_seconds: 600
  rate_max: 20
`)

	p, err := config.LoadProfile(dir, "EU")
	require.NoError(t, err)
	assert.Equal(t, "Europe", p.Name)
	assert.Equal(t, []string{"https://eu.example.com"}, p.AllowedOrigins)
	assert.Equal(t, 600, p.Limits.RateWindowSeconds)
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := config.LoadProfile(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestLoadProfile_CodeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "eu", "code: us\n")

	_, err := config.LoadProfile(dir, "eu")
	assert.Error(t, err)
}

func TestProfileApply(t *testing.T) {
	cfg := config.Load()
	p := &config.DeploymentProfile{
		AllowedOrigins: []string{"https://eu.example.com"},
		Limits: config.Limits{
			RateWindowSeconds:   600,
			RateMax:             20,
			ReplayWindowSeconds: 120,
		},
	}

	p.Apply(cfg)

	assert.Equal(t, []string{"https://eu.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.RateWindow)
	assert.Equal(t, 20, cfg.RateMax)
	assert.Equal(t, 2*time.Minute, cfg.ReplayWindow)
}

func TestProfileApply_ZeroValuesKeepBase(t *testing.T) {
	cfg := config.Load()
	base := cfg.RateWindow

	(&config.DeploymentProfile{}).Apply(cfg)

	assert.Equal(t, base, cfg.RateWindow)
	assert.Equal(t, 10, cfg.RateMax)
}
