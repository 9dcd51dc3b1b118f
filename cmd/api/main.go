// Command api runs the mail gateway's HTTP surface: the credential-
// authenticated external API and the session-authenticated admin
// console, plus the background log-retention job (C16), all sharing one
// Postgres pool and cache backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jeffreasy/mailgate/internal/adminauth"
	"github.com/jeffreasy/mailgate/internal/api"
	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/cache"
	"github.com/jeffreasy/mailgate/internal/config"
	"github.com/jeffreasy/mailgate/internal/credential"
	"github.com/jeffreasy/mailgate/internal/lockout"
	"github.com/jeffreasy/mailgate/internal/mail/oauthbroker"
	"github.com/jeffreasy/mailgate/internal/mail/orchestrator"
	"github.com/jeffreasy/mailgate/internal/pool"
	"github.com/jeffreasy/mailgate/internal/ratelimit"
	"github.com/jeffreasy/mailgate/internal/requestlog"
	"github.com/jeffreasy/mailgate/internal/retention"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
	"github.com/jeffreasy/mailgate/internal/totp"
	"github.com/jeffreasy/mailgate/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Setup(cfg.NodeEnv)
	log.Info("application_startup", "env", cfg.NodeEnv)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			TracesSampleRate: 1.0,
			Environment:      cfg.NodeEnv,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("database_connected")

	box, err := secretbox.New(cfg.EncryptionKey)
	if err != nil {
		log.Error("secretbox_init_failed", "error", err)
		os.Exit(1)
	}

	var sharedStore cache.SharedStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("redis_url_invalid", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("redis_ping_failed", "error", err)
			os.Exit(1)
		}
		sharedStore = cache.NewRedisStore(client)
		log.Info("cache_backend_selected", "backend", cache.BackendRedis)
	} else {
		sharedStore = cache.NewMemoryStore()
		log.Warn("cache_backend_selected", "backend", cache.BackendMemory, "details", "not_suitable_for_multi_instance_deployments")
	}

	limiter := ratelimit.NewSharedLimiter(sharedStore)
	lock := lockout.New(sharedStore, cfg.AdminLoginMaxAttempts, time.Duration(cfg.AdminLoginLockMinutes)*time.Minute)
	otpVerifier := totp.NewVerifier("mailgate", cfg.Admin2FAWindow)
	tokens := auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTExpiresIn)
	hasher := auth.NewBcryptHasher()

	credentialRepo := storage.NewCredentialRepo(dbPool)
	identifier := credential.New(credentialRepo, limiter)

	allocator := pool.New(dbPool, box)
	broker := oauthbroker.New(sharedStore)
	orch := orchestrator.New(broker)

	adminRepo := storage.NewAdminRepo(dbPool)
	authn := adminauth.New(adminRepo, hasher, tokens, lock, otpVerifier, box)

	apiCallRepo := storage.NewApiCallRepo(dbPool)
	reqLog := requestlog.New(apiCallRepo, log)

	job := retention.New(
		apiCallRepo,
		log,
		time.Duration(cfg.ApiLogCleanupIntervalMinutes)*time.Minute,
		cfg.ApiLogRetentionDays,
	)
	go job.Run(ctx)

	server := api.NewServer(api.Deps{
		DB:           dbPool,
		Identifier:   identifier,
		Allocator:    allocator,
		Orchestrator: orch,
		Box:          box,
		RequestLog:   reqLog,
		AdminAuth:    authn,
		Tokens:       tokens,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case <-ctx.Done():
		log.Info("shutdown_signal_received")
		job.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			_ = srv.Close()
		}

		dbPool.Close()
		log.Info("server_shutdown_complete")
	}
}
