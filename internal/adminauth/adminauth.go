// Package adminauth implements C18: authenticating human operators of the
// admin console and managing their two-factor enrollment, per spec.md
// §4.18. It composes the password hasher and JWT issuer (internal/auth),
// the login lock-out guard (internal/lockout), the TOTP verifier
// (internal/totp) and secret-at-rest encryption (internal/secretbox).
package adminauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/lockout"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
	"github.com/jeffreasy/mailgate/internal/totp"
)

// Authenticator runs admin login, session-token extraction and
// two-factor-enrollment state transitions.
type Authenticator struct {
	repo    *storage.AdminRepo
	hasher  auth.PasswordHasher
	tokens  auth.TokenProvider
	lock    *lockout.Lockout
	otp     *totp.Verifier
	secrets *secretbox.Box
}

func New(repo *storage.AdminRepo, hasher auth.PasswordHasher, tokens auth.TokenProvider, lock *lockout.Lockout, otp *totp.Verifier, secrets *secretbox.Box) *Authenticator {
	return &Authenticator{repo: repo, hasher: hasher, tokens: tokens, lock: lock, otp: otp, secrets: secrets}
}

// ExtractToken pulls the session token out of r: an Authorization: Bearer
// header takes priority over the "token" cookie, per spec.md §4.18.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

// Login runs the full C18 pipeline: lock-out check, password
// verification, conditional TOTP verification when two-factor is
// enabled, then issues a session token. A failed password or OTP check
// records a lock-out failure; success clears it.
func (a *Authenticator) Login(ctx context.Context, username, password, otpCode, clientIP string) (string, error) {
	locked, remaining, err := a.lock.Check(ctx, username, clientIP)
	if err != nil {
		return "", err
	}
	if locked {
		return "", lockedErr(remaining)
	}

	admin, err := a.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			locked, remaining, failErr := a.recordFailure(ctx, username, clientIP)
			if failErr != nil {
				return "", failErr
			}
			if locked {
				return "", lockedErr(remaining)
			}
			return "", apierr.New(apierr.CodeUnauthorized, "invalid credentials")
		}
		return "", err
	}

	if admin.Status != model.AdminActive {
		return "", apierr.New(apierr.CodeAccountDisabled, "account disabled")
	}

	if err := a.hasher.Compare(admin.PasswordDigest, password); err != nil {
		locked, remaining, failErr := a.recordFailure(ctx, username, clientIP)
		if failErr != nil {
			return "", failErr
		}
		if locked {
			return "", lockedErr(remaining)
		}
		return "", apierr.New(apierr.CodeUnauthorized, "invalid credentials")
	}

	if admin.TwoFactorEnabled {
		if admin.TwoFactorSecretCipher == nil {
			return "", apierr.New(apierr.CodeTwoFactorInvalid, "two-factor secret missing")
		}
		secret, err := a.secrets.Decrypt(*admin.TwoFactorSecretCipher)
		if err != nil {
			return "", apierr.New(apierr.CodeTwoFactorInvalid, "two-factor secret unreadable")
		}
		valid, err := a.otp.Validate(otpCode, secret, time.Now())
		if err != nil {
			return "", err
		}
		if !valid {
			locked, remaining, failErr := a.recordFailure(ctx, username, clientIP)
			if failErr != nil {
				return "", failErr
			}
			if locked {
				return "", lockedErr(remaining)
			}
			return "", apierr.New(apierr.CodeInvalidOtp, "invalid one-time code")
		}
	}

	if err := a.lock.Clear(ctx, username, clientIP); err != nil {
		return "", err
	}
	if err := a.repo.RecordLogin(ctx, admin.ID, time.Now(), clientIP); err != nil {
		return "", err
	}

	token, err := a.tokens.Generate(admin.ID, admin.Username, string(admin.Role))
	if err != nil {
		return "", err
	}
	return token, nil
}

// recordFailure reports a failed login attempt to the lock-out guard and
// propagates whether this attempt itself tripped the lock, so the caller
// can return ACCOUNT_LOCKED instead of the attempt's own failure code on
// the threshold-crossing call, per spec.md §8 scenario 6.
func (a *Authenticator) recordFailure(ctx context.Context, username, clientIP string) (locked bool, remaining time.Duration, err error) {
	return a.lock.RecordFailure(ctx, username, clientIP)
}

func lockedErr(remaining time.Duration) error {
	return apierr.New(apierr.CodeAccountLocked, "account temporarily locked").WithDetails(map[string]any{
		"retryAfterSeconds": int(remaining.Seconds()),
	})
}

// Authenticate validates a session token and returns its claims.
func (a *Authenticator) Authenticate(tokenString string) (*auth.Claims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, apierr.New(apierr.CodeInvalidToken, "invalid or expired session")
	}
	return claims, nil
}

// RequireSuperAdmin returns an error unless claims belong to a
// super_admin, per spec.md §4.18's privilege-gated admin operations.
func RequireSuperAdmin(claims *auth.Claims) error {
	if claims.Role != string(model.RoleSuperAdmin) {
		return apierr.New(apierr.CodeForbidden, "super admin privileges required")
	}
	return nil
}

// BeginTwoFactorEnrollment generates a fresh TOTP secret and stores it as
// the account's pending secret, per C18's Disabled -> Pending(secret)
// transition. Calling this again (re-initiation) discards whatever
// pending secret preceded it, matching spec.md §4.18.
func (a *Authenticator) BeginTwoFactorEnrollment(ctx context.Context, adminID uuid.UUID, username string) (secret, uri string, err error) {
	secret, uri, err = a.otp.GenerateSecret(username)
	if err != nil {
		return "", "", err
	}
	cipher, err := a.secrets.Encrypt(secret)
	if err != nil {
		return "", "", err
	}
	if err := a.repo.SetPendingTwoFactorSecret(ctx, adminID, cipher); err != nil {
		return "", "", err
	}
	return secret, uri, nil
}

// ConfirmTwoFactorEnrollment validates code against the account's
// pending secret and, on success, promotes it to the active secret,
// implementing C18's Pending -> Enabled transition.
func (a *Authenticator) ConfirmTwoFactorEnrollment(ctx context.Context, adminID uuid.UUID, code string) error {
	admin, err := a.repo.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.TwoFactorPendingSecretCipher == nil {
		return apierr.New(apierr.CodeTwoFactorInvalid, "no pending two-factor enrollment")
	}
	secret, err := a.secrets.Decrypt(*admin.TwoFactorPendingSecretCipher)
	if err != nil {
		return apierr.New(apierr.CodeTwoFactorInvalid, "pending secret unreadable")
	}
	valid, err := a.otp.Validate(code, secret, time.Now())
	if err != nil {
		return err
	}
	if !valid {
		return apierr.New(apierr.CodeInvalidOtp, "invalid one-time code")
	}
	cipher, err := a.secrets.Encrypt(secret)
	if err != nil {
		return err
	}
	return a.repo.EnableTwoFactor(ctx, adminID, cipher)
}

// DisableTwoFactor requires the current password and a valid OTP before
// reverting to Disabled, per C18's Enabled -> Disabled transition.
func (a *Authenticator) DisableTwoFactor(ctx context.Context, adminID uuid.UUID, password, code string) error {
	admin, err := a.repo.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if err := a.hasher.Compare(admin.PasswordDigest, password); err != nil {
		return apierr.New(apierr.CodeUnauthorized, "invalid credentials")
	}
	if !admin.TwoFactorEnabled || admin.TwoFactorSecretCipher == nil {
		return apierr.New(apierr.CodeTwoFactorInvalid, "two-factor is not enabled")
	}
	secret, err := a.secrets.Decrypt(*admin.TwoFactorSecretCipher)
	if err != nil {
		return apierr.New(apierr.CodeTwoFactorInvalid, "two-factor secret unreadable")
	}
	valid, err := a.otp.Validate(code, secret, time.Now())
	if err != nil {
		return err
	}
	if !valid {
		return apierr.New(apierr.CodeInvalidOtp, "invalid one-time code")
	}
	return a.repo.DisableTwoFactor(ctx, adminID)
}

// DiscardPendingTwoFactor clears an abandoned enrollment, called on
// logout per spec.md §4.18.
func (a *Authenticator) DiscardPendingTwoFactor(ctx context.Context, adminID uuid.UUID) error {
	return a.repo.DiscardPendingTwoFactor(ctx, adminID)
}
