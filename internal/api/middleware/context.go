package middleware

import (
	"context"
	"fmt"

	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for request-scoped values.
const (
	CredentialKey contextKey = "credential"
	AdminClaimsKey contextKey = "admin_claims"
	RequestIDKey  contextKey = "gateway_request_id"
)

// GetCredential safely extracts the identified external-API credential
// from context, set by the credential-identification middleware.
func GetCredential(ctx context.Context) (*model.Credential, error) {
	val := ctx.Value(CredentialKey)
	if val == nil {
		return nil, fmt.Errorf("credential not found in context")
	}
	cred, ok := val.(*model.Credential)
	if !ok {
		return nil, fmt.Errorf("credential has wrong type: %T", val)
	}
	return cred, nil
}

// GetAdminClaims safely extracts the authenticated admin's session
// claims from context, set by AdminAuthMiddleware.
func GetAdminClaims(ctx context.Context) (*auth.Claims, error) {
	val := ctx.Value(AdminClaimsKey)
	if val == nil {
		return nil, fmt.Errorf("admin claims not found in context")
	}
	claims, ok := val.(*auth.Claims)
	if !ok {
		return nil, fmt.Errorf("admin claims has wrong type: %T", val)
	}
	return claims, nil
}

// MustGetCredential extracts the credential and panics if not found.
// Use only in handlers guaranteed to run behind the credential
// middleware.
func MustGetCredential(ctx context.Context) *model.Credential {
	cred, err := GetCredential(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return cred
}

// MustGetAdminClaims extracts admin claims and panics if not found.
// Use only in handlers guaranteed to run behind AdminAuthMiddleware.
func MustGetAdminClaims(ctx context.Context) *auth.Claims {
	claims, err := GetAdminClaims(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return claims
}
