package context

import (
	"context"
	"log/slog"

	"github.com/enex/errcapture/internal/logging"
)

type contextKey string

const loggerKey contextKey = "logger"

func WithLogger(ctx context.Context, logger *logging.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the logger stored on ctx, or nil.
func Logger(ctx context.Context) *logging.Logger {
	if logger, ok := ctx.Value(loggerKey).(*logging.Logger); ok {
		return logger
	}
	return nil
}

// SlogLogger is Logger as a plain slog logger, falling back to slog.Default.
func SlogLogger(ctx context.Context) *slog.Logger {
	if logger := Logger(ctx); logger != nil {
		return logger.Logger
	}
	return slog.Default()
}
