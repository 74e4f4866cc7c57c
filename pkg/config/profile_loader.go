package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile is an environment-specific configuration overlay.
// Profiles let one binary ship with per-deployment origin allow-lists and
// limit overrides instead of long env var lists.
type DeploymentProfile struct {
	Name           string   `yaml:"name" json:"name"`
	Code           string   `yaml:"code" json:"code"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	Limits         Limits   `yaml:"limits" json:"limits"`
}

// Limits holds per-profile overrides for the anti-abuse windows. Zero
// values mean "keep the base config".
type Limits struct {
	RateWindowSeconds   int `yaml:"rate_window_seconds" json:"rate_window_seconds"`
	RateMax             int `yaml:"rate_max" json:"rate_max"`
	ReplayWindowSeconds int `yaml:"replay_window_seconds" json:"replay_window_seconds"`
}

// LoadProfile loads a deployment profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*DeploymentProfile, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("profile code is empty")
	}

	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied config
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p DeploymentProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Code != "" && !strings.EqualFold(p.Code, code) {
		return nil, fmt.Errorf("profile %s declares code %q", path, p.Code)
	}
	return &p, nil
}

// Apply overlays the profile onto cfg. Explicit env configuration wins for
// origins only when the profile carries none.
func (p *DeploymentProfile) Apply(cfg *Config) {
	if len(p.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string(nil), p.AllowedOrigins...)
	}
	if p.Limits.RateWindowSeconds > 0 {
		cfg.RateWindow = time.Duration(p.Limits.RateWindowSeconds) * time.Second
	}
	if p.Limits.RateMax > 0 {
		cfg.RateMax = p.Limits.RateMax
	}
	if p.Limits.ReplayWindowSeconds > 0 {
		cfg.ReplayWindow = time.Duration(p.Limits.ReplayWindowSeconds) * time.Second
	}
}
