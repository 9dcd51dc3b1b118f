package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jeffreasy/mailgate/internal/adminauth"
	"github.com/jeffreasy/mailgate/internal/api/helpers"
	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/auth"
)

// AdminAuthMiddleware validates the admin session token (bearer or
// "token" cookie, per spec.md §4.18) and injects its claims into the
// request context.
func AdminAuthMiddleware(tokens auth.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := adminauth.ExtractToken(r)
			if tokenStr == "" {
				helpers.RespondAPIError(w, apierr.New(apierr.CodeUnauthorized, "session token required"))
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				slog.Warn("invalid admin session token", "error", err, "ip", r.RemoteAddr)
				helpers.RespondAPIError(w, apierr.New(apierr.CodeInvalidToken, "invalid or expired session"))
				return
			}

			SetSentryUser(r.Context(), claims.UserID.String(), claims.Role, r.RemoteAddr)

			ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperAdmin rejects requests whose admin claims are not
// super_admin, per spec.md §4.18's privilege-gated operations.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := GetAdminClaims(r.Context())
		if err != nil {
			helpers.RespondAPIError(w, apierr.New(apierr.CodeUnauthorized, "session required"))
			return
		}
		if err := adminauth.RequireSuperAdmin(claims); err != nil {
			if apiErr, ok := err.(*apierr.Error); ok {
				helpers.RespondAPIError(w, apiErr)
				return
			}
			helpers.RespondAPIError(w, apierr.New(apierr.CodeForbidden, "forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
