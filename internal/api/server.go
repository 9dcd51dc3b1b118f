package api

import (
	"log/slog"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffreasy/mailgate/internal/adminauth"
	"github.com/jeffreasy/mailgate/internal/api/helpers"
	customMiddleware "github.com/jeffreasy/mailgate/internal/api/middleware"
	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/credential"
	"github.com/jeffreasy/mailgate/internal/mail/orchestrator"
	"github.com/jeffreasy/mailgate/internal/pool"
	"github.com/jeffreasy/mailgate/internal/requestlog"
	"github.com/jeffreasy/mailgate/internal/secretbox"
)

// Server wires the chi router against every component the gateway's two
// HTTP surfaces need.
type Server struct {
	Router *chi.Mux
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// Deps is everything NewServer needs to build the external and admin
// route tables (spec.md §6).
type Deps struct {
	DB           *pgxpool.Pool
	Identifier   *credential.Identifier
	Allocator    *pool.Allocator
	Orchestrator *orchestrator.Orchestrator
	Box          *secretbox.Box
	RequestLog   *requestlog.Logger
	AdminAuth    *adminauth.Authenticator
	Tokens       auth.TokenProvider
	Logger       *slog.Logger
}

func NewServer(d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Request-Id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(customMiddleware.RequestLogger)
	r.Use(customMiddleware.PanicRecovery)

	limiter := customMiddleware.NewIPRateLimiter(20, 40)
	r.Use(limiter.Middleware)

	r.Get("/health", healthHandler)

	external := NewExternalHandler(d.DB, d.Allocator, d.Orchestrator, d.Box, d.RequestLog)
	admin := NewAdminHandler(d.DB, d.AdminAuth, d.Box, d.Allocator, d.RequestLog)

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.CredentialAuth(d.Identifier))

		r.With(customMiddleware.RequireAction("get_email")).Get("/get-email", external.GetEmail)
		r.With(customMiddleware.RequireAction("get_email")).Post("/get-email", external.GetEmail)

		r.With(customMiddleware.RequireAction("mail_new")).Get("/mail_new", external.MailNew)
		r.With(customMiddleware.RequireAction("mail_new")).Post("/mail_new", external.MailNew)

		r.With(customMiddleware.RequireAction("mail_text")).Get("/mail_text", external.MailText)
		r.With(customMiddleware.RequireAction("mail_text")).Post("/mail_text", external.MailText)

		r.With(customMiddleware.RequireAction("mail_all")).Get("/mail_all", external.MailAll)
		r.With(customMiddleware.RequireAction("mail_all")).Post("/mail_all", external.MailAll)

		r.With(customMiddleware.RequireAction("process_mailbox")).Get("/process-mailbox", external.ProcessMailbox)
		r.With(customMiddleware.RequireAction("process_mailbox")).Post("/process-mailbox", external.ProcessMailbox)

		r.With(customMiddleware.RequireAction("list_emails")).Get("/list-emails", external.ListEmails)
		r.With(customMiddleware.RequireAction("list_emails")).Post("/list-emails", external.ListEmails)

		r.With(customMiddleware.RequireAction("pool_stats")).Get("/pool-stats", external.PoolStats)
		r.With(customMiddleware.RequireAction("pool_stats")).Post("/pool-stats", external.PoolStats)

		r.With(customMiddleware.RequireAction("pool_reset")).Get("/reset-pool", external.PoolReset)
		r.With(customMiddleware.RequireAction("pool_reset")).Post("/reset-pool", external.PoolReset)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/login", admin.Login)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AdminAuthMiddleware(d.Tokens))

			r.Post("/auth/logout", admin.Logout)
			r.Get("/auth/me", admin.Me)

			r.Post("/auth/2fa/setup", admin.BeginTwoFactor)
			r.Post("/auth/2fa/enable", admin.ConfirmTwoFactor)
			r.Post("/auth/2fa/disable", admin.DisableTwoFactor)

			r.Get("/dashboard/stats", admin.DashboardStats)
			r.Get("/calls", admin.ListCalls)

			r.Get("/credentials", admin.ListCredentials)
			r.Post("/credentials", admin.CreateCredential)
			r.Patch("/credentials/{id}", admin.UpdateCredential)
			r.Delete("/credentials/{id}", admin.DeleteCredential)
			r.Get("/credentials/{id}/pool", admin.GetCredentialPool)
			r.Put("/credentials/{id}/pool", admin.ReplaceCredentialPool)

			r.Get("/mailboxes", admin.ListMailboxes)
			r.Post("/mailboxes", admin.CreateMailbox)
			r.Delete("/mailboxes/{id}", admin.DeleteMailbox)

			r.Get("/groups", admin.ListGroups)
			r.Post("/groups", admin.CreateGroup)
			r.Delete("/groups/{id}", admin.DeleteGroup)

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.RequireSuperAdmin)
				r.Get("/admins", admin.ListAdmins)
				r.Post("/admins", admin.CreateAdmin)
			})
		})
	})

	return &Server{Router: r, Pool: d.DB, Logger: d.Logger}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]string{"status": "ok"},
	})
}
