package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process-wide structured logger for the gateway and
// installs it as slog's default, so every package can log via the
// top-level slog functions without threading a *slog.Logger through.
// Production gets JSON output at info level; anything else gets
// human-readable text at debug level.
func Setup(env string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
