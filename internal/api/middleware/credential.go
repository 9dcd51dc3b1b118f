package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/jeffreasy/mailgate/internal/api/helpers"
	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/credential"
	"github.com/jeffreasy/mailgate/internal/permission"
)

// CredentialAuth identifies the caller via C17 and injects the resolved
// Credential into the request context. It must run in front of every
// `/api` route.
func CredentialAuth(identifier *credential.Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := credential.Extract(r)
			if raw == "" {
				helpers.RespondAPIError(w, apierr.New(apierr.CodeInvalidApiKey, "api key required"))
				return
			}

			cred, err := identifier.Identify(r.Context(), raw)
			if err != nil {
				var apiErr *apierr.Error
				if errors.As(err, &apiErr) {
					helpers.RespondAPIError(w, apiErr)
					return
				}
				helpers.RespondAPIError(w, apierr.New(apierr.CodeInternal, "credential lookup failed"))
				return
			}

			SetSentryCredential(r.Context(), cred.ID.String(), cred.DisplayName)

			ctx := context.WithValue(r.Context(), CredentialKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAction rejects the request, per C7, unless the credential in
// context permits actionKey.
func RequireAction(actionKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := GetCredential(r.Context())
			if err != nil {
				helpers.RespondAPIError(w, apierr.New(apierr.CodeUnauthorized, "credential required"))
				return
			}
			if !permission.Allowed(cred.PermissionMap, actionKey) {
				helpers.RespondAPIError(w, apierr.New(apierr.CodeForbidden, "action not permitted for this credential"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
