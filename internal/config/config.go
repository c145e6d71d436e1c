// Package config loads the server configuration: an optional YAML file
// overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the server.
type Config struct {
	// Addr is the listen address (e.g., ":8080").
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db_path"`
	RedisURL string `yaml:"redis_url"`
	LogLevel string `yaml:"log_level"`

	// StaticPath, when set, is a directory of frontend files served for
	// every non-RPC path.
	StaticPath string `yaml:"static_path,omitempty"`

	// CacheTTL bounds how stale a split entry can be after a failed
	// invalidation. ReceiptTTL is the lifetime of reused extractions.
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	ReceiptTTL time.Duration `yaml:"receipt_ttl"`

	Gemini GeminiConfig `yaml:"gemini"`
	Ledger LedgerConfig `yaml:"ledger"`
	Auth   AuthConfig   `yaml:"auth"`
}

// GeminiConfig configures the extraction model.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	// Model is empty for the extractor's default.
	Model string `yaml:"model,omitempty"`
	// PDFDPI is the resolution PDF pages are rendered at.
	PDFDPI int `yaml:"pdf_dpi"`
}

// LedgerConfig configures the OAuth client registered with the ledger.
type LedgerConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	// BaseURL is empty for the production API.
	BaseURL string `yaml:"base_url,omitempty"`
	// HandshakeTTL bounds how long a login may take.
	HandshakeTTL time.Duration `yaml:"handshake_ttl"`
}

// AuthConfig configures session tokens and credential storage.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTAlgorithm string        `yaml:"jwt_algorithm"`
	AccessTTL    time.Duration `yaml:"access_ttl"`
	RefreshTTL   time.Duration `yaml:"refresh_ttl"`
	// CredentialSecret seals stored ledger tokens. Changing it makes every
	// stored credential unreadable.
	CredentialSecret string `yaml:"credential_secret"`
	// FrontendURL receives the browser after a login.
	FrontendURL string `yaml:"frontend_url"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:       ":8080",
		DBPath:     "./data/splitthat.db",
		RedisURL:   "redis://localhost:6379/0",
		LogLevel:   "info",
		CacheTTL:   time.Hour,
		ReceiptTTL: 24 * time.Hour,
		Gemini: GeminiConfig{
			PDFDPI: 150,
		},
		Ledger: LedgerConfig{
			RedirectURL:  "http://localhost:8080/auth/ledger/callback",
			HandshakeTTL: 10 * time.Minute,
		},
		Auth: AuthConfig{
			JWTAlgorithm: "HS256",
			AccessTTL:    30 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
			FrontendURL:  "http://localhost:3000/login-success",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty) over the
// defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LISTEN_ADDR", &c.Addr},
		{"DB_PATH", &c.DBPath},
		{"REDIS_URL", &c.RedisURL},
		{"LOG_LEVEL", &c.LogLevel},
		{"STATIC_PATH", &c.StaticPath},
		{"GEMINI_API_KEY", &c.Gemini.APIKey},
		{"GEMINI_MODEL", &c.Gemini.Model},
		{"SPLITWISE_CLIENT_ID", &c.Ledger.ClientID},
		{"SPLITWISE_CLIENT_SECRET", &c.Ledger.ClientSecret},
		{"SPLITWISE_REDIRECT_URL", &c.Ledger.RedirectURL},
		{"SPLITWISE_BASE_URL", &c.Ledger.BaseURL},
		{"JWT_SECRET", &c.Auth.JWTSecret},
		{"JWT_ALGORITHM", &c.Auth.JWTAlgorithm},
		{"CREDENTIAL_SECRET", &c.Auth.CredentialSecret},
		{"FRONTEND_URL", &c.Auth.FrontendURL},
	}
	for _, s := range strs {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CACHE_TTL", &c.CacheTTL},
		{"RECEIPT_CACHE_TTL", &c.ReceiptTTL},
		{"HANDSHAKE_TTL", &c.Ledger.HandshakeTTL},
		{"ACCESS_TOKEN_TTL", &c.Auth.AccessTTL},
		{"REFRESH_TOKEN_TTL", &c.Auth.RefreshTTL},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate reports every missing or unusable setting at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"gemini.api_key", c.Gemini.APIKey},
		{"ledger.client_id", c.Ledger.ClientID},
		{"ledger.client_secret", c.Ledger.ClientSecret},
		{"ledger.redirect_url", c.Ledger.RedirectURL},
		{"auth.jwt_secret", c.Auth.JWTSecret},
		{"auth.credential_secret", c.Auth.CredentialSecret},
		{"auth.frontend_url", c.Auth.FrontendURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_ttl must be positive"))
	}
	if c.Gemini.PDFDPI <= 0 {
		errs = append(errs, errors.New("gemini.pdf_dpi must be positive"))
	}
	return errors.Join(errs...)
}
