package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NODE_ENV", "PORT", "DATABASE_URL", "REDIS_URL", "JWT_SECRET",
		"JWT_EXPIRES_IN", "ENCRYPTION_KEY", "ADMIN_USERNAME", "ADMIN_PASSWORD",
		"ADMIN_LOGIN_MAX_ATTEMPTS", "ADMIN_LOGIN_LOCK_MINUTES",
		"ADMIN_2FA_SECRET", "ADMIN_2FA_WINDOW", "API_LOG_RETENTION_DAYS",
		"API_LOG_CLEANUP_INTERVAL_MINUTES", "CORS_ORIGIN",
	} {
		t.Setenv(key, "")
	}
	_ = os.Unsetenv
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	_, err := Load()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "JWT_SECRET")
}

func TestLoadRejectsWrongLengthEncryptionKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "0123456789012345678901234567890123456789")
	t.Setenv("ENCRYPTION_KEY", "short")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	_, err := Load()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "ENCRYPTION_KEY")
}

func TestLoadRejectsDefaultAdminPasswordInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789012345678901234567890123456789")
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("ADMIN_PASSWORD", defaultAdminPassword)

	_, err := Load()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "ADMIN_PASSWORD")
}

func TestLoadSucceedsWithValidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "0123456789012345678901234567890123456789")
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.AdminLoginMaxAttempts)
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b ,,"))
	assert.Nil(t, splitCSV(""))
}
