// Package totp wraps github.com/pquerna/otp/totp with the windowing,
// secret-generation and URI-formatting rules spec'd for the gateway's
// admin two-factor authentication (C3).
package totp

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultWindow is the number of 30s steps accepted on either side of
// the current time when no window is explicitly configured.
const DefaultWindow = 1

// Verifier generates and validates TOTP codes for a configured issuer.
type Verifier struct {
	issuer string
	window uint
}

// NewVerifier creates a Verifier. window must be 0-5; values outside
// that range are replaced by DefaultWindow.
func NewVerifier(issuer string, window int) *Verifier {
	if window < 0 || window > 5 {
		window = DefaultWindow
	}
	return &Verifier{issuer: issuer, window: uint(window)}
}

// GenerateSecret creates a new CSPRNG base32 secret (at least 16 bytes,
// per spec.md §4.3) and its otpauth:// URI for accountName.
func (v *Verifier) GenerateSecret(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: accountName,
		SecretSize:  20, // 160 bits, comfortably over the 16-byte floor
	})
	if err != nil {
		return "", "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return key.Secret(), key.String(), nil
}

// Validate checks code against secret at time t, accepting the
// configured symmetric skew window.
func (v *Verifier) Validate(code, secret string, t time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
		Period:    30,
		Skew:      v.window,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("totp: validate: %w", err)
	}
	return valid, nil
}

// GenerateCode returns the code for secret at time t.
func (v *Verifier) GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCode(secret, t)
}
