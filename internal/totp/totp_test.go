package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWithinWindow(t *testing.T) {
	v := NewVerifier("mailgate", 1)

	secret, uri, err := v.GenerateSecret("ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "mailgate")

	now := time.Unix(1_700_000_000, 0)

	for _, delta := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := totp.GenerateCode(secret, now.Add(delta))
		require.NoError(t, err)

		ok, err := v.Validate(code, secret, now)
		require.NoError(t, err)
		assert.True(t, ok, "delta=%v should be within window 1", delta)
	}
}

func TestValidateRejectsOutsideWindow(t *testing.T) {
	v := NewVerifier("mailgate", 1)
	secret, _, err := v.GenerateSecret("ops@example.com")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	farCode, err := totp.GenerateCode(secret, now.Add(5*time.Minute))
	require.NoError(t, err)

	ok, err := v.Validate(farCode, secret, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateRejectsWrongCode(t *testing.T) {
	v := NewVerifier("mailgate", 1)
	secret, _, err := v.GenerateSecret("ops@example.com")
	require.NoError(t, err)

	// Pick a code that matches none of the three codes the window accepts.
	now := time.Now()
	windowCodes := map[string]bool{}
	for _, delta := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := totp.GenerateCode(secret, now.Add(delta))
		require.NoError(t, err)
		windowCodes[code] = true
	}
	wrong := "000000"
	for _, candidate := range []string{"000000", "000001", "000002", "000003"} {
		if !windowCodes[candidate] {
			wrong = candidate
			break
		}
	}

	ok, err := v.Validate(wrong, secret, now)
	require.NoError(t, err)
	assert.False(t, ok)
}
