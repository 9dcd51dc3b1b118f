// Package config implements C20: loading and validating the gateway's
// environment-variable configuration at startup, aborting with a
// structured, multi-field error rather than failing lazily later
// (spec.md §4.20, §6).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting the gateway needs.
type Config struct {
	NodeEnv     string // "production" or anything else (treated as dev)
	Port        string
	DatabaseURL string
	RedisURL    string

	JWTSecret     string
	JWTExpiresIn  time.Duration
	EncryptionKey string

	AdminUsername string
	AdminPassword string

	AdminLoginMaxAttempts int
	AdminLoginLockMinutes int

	Admin2FASecret string
	Admin2FAWindow int

	ApiLogRetentionDays           int
	ApiLogCleanupIntervalMinutes int

	CORSOrigins []string
}

// IsProduction reports whether NodeEnv is "production".
func (c Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// ValidationError lists every configuration field in violation, so
// operators fix them all in one pass instead of one env var per restart.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// defaultAdminPassword is the well-known placeholder that must never
// reach production, per spec.md §4.20.
const defaultAdminPassword = "admin123"

// Load reads every environment variable spec.md §6 lists and validates
// it, returning a *ValidationError naming every field in violation if
// any check fails.
func Load() (Config, error) {
	cfg := Config{
		NodeEnv:                      getEnv("NODE_ENV", "development"),
		Port:                         getEnv("PORT", "8080"),
		DatabaseURL:                  os.Getenv("DATABASE_URL"),
		RedisURL:                     os.Getenv("REDIS_URL"),
		JWTSecret:                    os.Getenv("JWT_SECRET"),
		JWTExpiresIn:                 getEnvAsDuration("JWT_EXPIRES_IN", 2*time.Hour),
		EncryptionKey:                os.Getenv("ENCRYPTION_KEY"),
		AdminUsername:                os.Getenv("ADMIN_USERNAME"),
		AdminPassword:                os.Getenv("ADMIN_PASSWORD"),
		AdminLoginMaxAttempts:        getEnvAsInt("ADMIN_LOGIN_MAX_ATTEMPTS", 5),
		AdminLoginLockMinutes:        getEnvAsInt("ADMIN_LOGIN_LOCK_MINUTES", 15),
		Admin2FASecret:               os.Getenv("ADMIN_2FA_SECRET"),
		Admin2FAWindow:               getEnvAsInt("ADMIN_2FA_WINDOW", 1),
		ApiLogRetentionDays:          getEnvAsInt("API_LOG_RETENTION_DAYS", 30),
		ApiLogCleanupIntervalMinutes: getEnvAsInt("API_LOG_CLEANUP_INTERVAL_MINUTES", 60),
		CORSOrigins:                  splitCSV(os.Getenv("CORS_ORIGIN")),
	}

	var violations []string

	if len(cfg.JWTSecret) < 32 {
		violations = append(violations, "JWT_SECRET must be at least 32 characters")
	}
	if len(cfg.EncryptionKey) != 32 {
		violations = append(violations, "ENCRYPTION_KEY must be exactly 32 characters")
	}
	if cfg.DatabaseURL == "" {
		violations = append(violations, "DATABASE_URL is required")
	} else if _, err := url.Parse(cfg.DatabaseURL); err != nil {
		violations = append(violations, fmt.Sprintf("DATABASE_URL is not a parseable URL: %v", err))
	}
	if cfg.Admin2FASecret != "" && len(cfg.Admin2FASecret) < 16 {
		violations = append(violations, "ADMIN_2FA_SECRET must be at least 16 base32 characters")
	}
	if cfg.ApiLogRetentionDays <= 0 {
		violations = append(violations, "API_LOG_RETENTION_DAYS must be positive")
	}
	if cfg.ApiLogCleanupIntervalMinutes <= 0 {
		violations = append(violations, "API_LOG_CLEANUP_INTERVAL_MINUTES must be positive")
	}
	if cfg.AdminLoginMaxAttempts <= 0 {
		violations = append(violations, "ADMIN_LOGIN_MAX_ATTEMPTS must be positive")
	}
	if cfg.AdminLoginLockMinutes <= 0 {
		violations = append(violations, "ADMIN_LOGIN_LOCK_MINUTES must be positive")
	}
	if cfg.IsProduction() && cfg.AdminPassword == defaultAdminPassword {
		violations = append(violations, "ADMIN_PASSWORD must not be the default placeholder value in production")
	}

	if len(violations) > 0 {
		return Config{}, &ValidationError{Violations: violations}
	}
	return cfg, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
