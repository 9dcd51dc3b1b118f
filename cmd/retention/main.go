// Command retention runs the standalone API-call log janitor (C16):
// it ticks on the configured interval, deleting ApiCallRecord rows past
// the retention window, until terminated.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeffreasy/mailgate/internal/config"
	"github.com/jeffreasy/mailgate/internal/retention"
	"github.com/jeffreasy/mailgate/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := storage.NewApiCallRepo(pool)
	job := retention.New(
		repo,
		logger,
		time.Duration(cfg.ApiLogCleanupIntervalMinutes)*time.Minute,
		cfg.ApiLogRetentionDays,
	)

	logger.Info("retention worker started",
		"intervalMinutes", cfg.ApiLogCleanupIntervalMinutes,
		"retentionDays", cfg.ApiLogRetentionDays,
	)

	job.Run(ctx)
	logger.Info("retention worker shutting down")
}
