package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/getsentry/sentry-go/slog"
	"github.com/hashicorp/go-multierror"
	slogmulti "github.com/samber/slog-multi"
)

const (
	sentryFlushTimeout = 2 * time.Second
)

// Logger wraps slog.Logger with cleanup capability and dynamic handlers
type Logger struct {
	*slog.Logger
	cleanupFuncs []func() error
}

// Close runs every cleanup and reports all failures
func (l *Logger) Close() error {
	var result error
	for _, cleanup := range l.cleanupFuncs {
		if err := cleanup(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// With returns a new logger with additional attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:       l.Logger.With(args...),
		cleanupFuncs: l.cleanupFuncs,
	}
}

// WithGroup returns a new logger with a group
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		Logger:       l.Logger.WithGroup(name),
		cleanupFuncs: l.cleanupFuncs,
	}
}

// Option configures a logger
type Option func(*config) error

type config struct {
	level        slog.Level
	text         bool
	outputs      []io.Writer
	handlers     []slog.Handler
	cleanupFuncs []func() error
}

// New creates a logger with options
func New(opts ...Option) (*Logger, error) {
	cfg := &config{
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			// undo files opened by earlier options
			for _, cleanup := range cfg.cleanupFuncs {
				_ = cleanup()
			}
			return nil, err
		}
	}

	// Default to stderr if no outputs specified
	if len(cfg.outputs) == 0 {
		cfg.outputs = []io.Writer{os.Stderr}
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}
	out := io.MultiWriter(cfg.outputs...)
	var h slog.Handler
	if cfg.text {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}
	handlers := append([]slog.Handler{h}, cfg.handlers...)

	return &Logger{
		Logger:       slog.New(slogmulti.Fanout(handlers...)),
		cleanupFuncs: cfg.cleanupFuncs,
	}, nil
}

// Must wraps New and panics on error
func Must(opts ...Option) *Logger {
	logger, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return logger
}

// Level sets the log level
func Level(level slog.Level) Option {
	return func(c *config) error {
		c.level = level
		return nil
	}
}

// Debug sets debug level
func Debug() Option {
	return Level(slog.LevelDebug)
}

// Text switches the primary handler from JSON to logfmt-style text
func Text() Option {
	return func(c *config) error {
		c.text = true
		return nil
	}
}

// Console logs to stderr
func Console() Option {
	return Writer(os.Stderr)
}

// Writer logs to w. If w is an io.Closer it is closed with the logger.
func Writer(w io.Writer) Option {
	return func(c *config) error {
		if w == nil {
			return fmt.Errorf("log writer is required")
		}
		c.outputs = append(c.outputs, w)
		if closer, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
			c.cleanupFuncs = append(c.cleanupFuncs, closer.Close)
		}
		return nil
	}
}

// File logs to a file (path is required)
func File(path string) Option {
	return func(c *config) error {
		if path == "" {
			return fmt.Errorf("log file path is required")
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", path, err)
		}

		c.outputs = append(c.outputs, file)
		c.cleanupFuncs = append(c.cleanupFuncs, file.Close)
		return nil
	}
}

// Sentry forwards error-level records to the hub carried by ctx. Sentry
// setup is owned by the caller; on close the hub is flushed.
func Sentry(ctx context.Context) Option {
	return func(c *config) error {
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			return nil
		}

		c.handlers = append(c.handlers, slogsentry.Option{
			Level: slog.LevelError,
		}.NewSentryHandler(ctx))
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			if hub.Client() == nil {
				return nil
			}
			if !hub.Flush(sentryFlushTimeout) {
				return fmt.Errorf("sentry flush timeout")
			}
			return nil
		})
		return nil
	}
}
