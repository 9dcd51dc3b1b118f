package middleware

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SetSentryUser adds the authenticated admin's identity to the Sentry
// scope for the remainder of the request.
func SetSentryUser(_ context.Context, userID string, role string, ip string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID, IPAddress: ip})
		scope.SetTag("admin_role", role)
	})
}

// SetSentryCredential tags the Sentry scope with the external-API
// credential handling the current request.
func SetSentryCredential(_ context.Context, credentialID string, displayName string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("credential_id", credentialID)
		scope.SetTag("credential_name", displayName)
	})
}
