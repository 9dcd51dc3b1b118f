package adminauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/cache"
	"github.com/jeffreasy/mailgate/internal/lockout"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
	"github.com/jeffreasy/mailgate/internal/totp"
)

func TestExtractTokenPrefersBearerOverCookie(t *testing.T) {
	r := &http.Request{Header: http.Header{}}
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})

	assert.Equal(t, "from-header", ExtractToken(r))
}

func TestExtractTokenFallsBackToCookie(t *testing.T) {
	r := &http.Request{Header: http.Header{}}
	r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})

	assert.Equal(t, "from-cookie", ExtractToken(r))
}

func TestExtractTokenReturnsEmptyWhenAbsent(t *testing.T) {
	r := &http.Request{Header: http.Header{}}
	assert.Equal(t, "", ExtractToken(r))
}

func TestRequireSuperAdminRejectsNonSuperAdmin(t *testing.T) {
	err := RequireSuperAdmin(&auth.Claims{Role: "admin"})
	assert.Error(t, err)
}

func TestRequireSuperAdminAllowsSuperAdmin(t *testing.T) {
	err := RequireSuperAdmin(&auth.Claims{Role: "super_admin"})
	assert.NoError(t, err)
}

// noRowsRow implements pgx.Row, always reporting "no rows", so the
// AdminRepo it backs behaves as if the username never existed.
type noRowsRow struct{}

func (noRowsRow) Scan(dest ...any) error { return pgx.ErrNoRows }

// noRowsDBTX implements storage.DBTX without a real database, so
// AdminRepo.GetByUsername always returns storage.ErrNotFound.
type noRowsDBTX struct{}

func (noRowsDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (noRowsDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (noRowsDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return noRowsRow{}
}

func newTestAuthenticator(t *testing.T, maxAttempts int) *Authenticator {
	t.Helper()
	box, err := secretbox.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	return New(
		storage.NewAdminRepo(noRowsDBTX{}),
		auth.NewBcryptHasher(),
		auth.NewJWTProvider("test-secret-at-least-32-bytes-long!", time.Hour),
		lockout.New(cache.NewMemoryStore(), maxAttempts, time.Minute),
		totp.NewVerifier("mailgate-test", 1),
		box,
	)
}

// TestLoginLockOutTripsOnThresholdCrossingAttempt matches spec.md §8
// scenario 6 literally: the first two failed logins return
// UNAUTHORIZED, and the third (threshold-crossing) attempt itself
// returns ACCOUNT_LOCKED rather than another UNAUTHORIZED.
func TestLoginLockOutTripsOnThresholdCrossingAttempt(t *testing.T) {
	authn := newTestAuthenticator(t, 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := authn.Login(ctx, "nouser", "wrong-password", "", "203.0.113.1")
		require.Error(t, err)

		var apiErr *apierr.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, apierr.CodeUnauthorized, apiErr.Code, "attempt %d should still be a plain auth failure", i+1)
	}

	_, err := authn.Login(ctx, "nouser", "wrong-password", "", "203.0.113.1")
	require.Error(t, err)

	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierr.CodeAccountLocked, apiErr.Code, "the threshold-crossing attempt must itself report the lock")
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

// TestLoginReturnsLockedWhileAlreadyLocked confirms a later attempt
// against an already-tripped lock is rejected before any credential
// work happens, independent of username/password correctness.
func TestLoginReturnsLockedWhileAlreadyLocked(t *testing.T) {
	authn := newTestAuthenticator(t, 1)
	ctx := context.Background()

	_, err := authn.Login(ctx, "nouser", "wrong-password", "", "203.0.113.2")
	require.Error(t, err)
	var firstErr *apierr.Error
	require.True(t, errors.As(err, &firstErr))
	assert.Equal(t, apierr.CodeAccountLocked, firstErr.Code)

	_, err = authn.Login(ctx, "nouser", "wrong-password", "", "203.0.113.2")
	require.Error(t, err)
	var secondErr *apierr.Error
	require.True(t, errors.As(err, &secondErr))
	assert.Equal(t, apierr.CodeAccountLocked, secondErr.Code)
}
