// Package config loads the process configuration once at startup.
//
// WHERE VALUES COME FROM (highest priority first):
//  1. Command-line flags bound by cmd/dealbot (e.g. --port)
//  2. Environment variables (DATABASE_URL, PORT, ...)
//  3. A .env file, only when ENV=dev
//  4. The defaults below
//
// Viper handles 1, 2 and 4; godotenv handles 3 by copying the file into the
// environment before viper reads it.
//
// Nothing else in the module reads the environment. The resulting Config
// is passed explicitly to the constructors that need it, so the backend
// choice is fixed for the life of the process.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/dealbot/internal/db"
)

// Keys, named after their environment variables in lower case.
const (
	KeyDatabaseURL    = "database_url"
	KeySQLitePath     = "deal_tracker_db"
	KeyPort           = "port"
	KeyDashboardURL   = "dashboard_url"
	KeyWhatsAppNumber = "whatsapp_number"
	KeySandboxJoin    = "whatsapp_sandbox_join"
	KeySessionSecret  = "session_secret"
	KeyLinkAPIKeyHash = "link_api_key_hash"
	KeyAutoMigrate    = "auto_migrate"
	KeyLogLevel       = "log_level"
)

// Config is the fully resolved configuration.
type Config struct {
	DatabaseURL    string
	SQLitePath     string
	Port           int
	DashboardURL   string
	WhatsAppNumber string
	SandboxJoin    string
	SessionSecret  string
	LinkAPIKeyHash string
	AutoMigrate    bool
	LogLevel       slog.Level

	// SessionSecretGenerated is true when SESSION_SECRET was unset and a
	// random one was made for this process. Sessions then die on restart.
	SessionSecretGenerated bool
}

// NewViper returns a viper instance with defaults set and the environment
// bound. Callers may bind flags onto it before calling Load.
func NewViper() *viper.Viper {
	if os.Getenv("ENV") == "dev" {
		// A missing .env is fine in dev.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeySQLitePath, "data/deal_tracker.db")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDashboardURL, "http://localhost:8080")
	v.SetDefault(KeyWhatsAppNumber, "+14155238886")
	v.SetDefault(KeySandboxJoin, "join lucky-spoke")
	v.SetDefault(KeySessionSecret, "")
	v.SetDefault(KeyLinkAPIKeyHash, "")
	v.SetDefault(KeyAutoMigrate, true)
	v.SetDefault(KeyLogLevel, "info")
	v.AutomaticEnv()
	return v
}

// Load resolves and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabaseURL:    strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		SQLitePath:     strings.TrimSpace(v.GetString(KeySQLitePath)),
		Port:           v.GetInt(KeyPort),
		DashboardURL:   strings.TrimRight(strings.TrimSpace(v.GetString(KeyDashboardURL)), "/"),
		WhatsAppNumber: v.GetString(KeyWhatsAppNumber),
		SandboxJoin:    v.GetString(KeySandboxJoin),
		SessionSecret:  v.GetString(KeySessionSecret),
		LinkAPIKeyHash: strings.TrimSpace(v.GetString(KeyLinkAPIKeyHash)),
		AutoMigrate:    v.GetBool(KeyAutoMigrate),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", strings.ToUpper(KeyLogLevel), err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT must be between 1 and 65535, got %d", cfg.Port)
	}

	u, err := url.Parse(cfg.DashboardURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("config: DASHBOARD_URL must be an http(s) origin, got %q", cfg.DashboardURL)
	}

	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return Config{}, errors.New("config: one of DATABASE_URL or DEAL_TRACKER_DB is required")
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.SessionSecret = secret
		cfg.SessionSecretGenerated = true
	}

	return cfg, nil
}

// DB is the subset db.Open needs.
func (c Config) DB() db.Config {
	return db.Config{URL: c.DatabaseURL, SQLitePath: c.SQLitePath}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.DashboardURL, "https://")
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
