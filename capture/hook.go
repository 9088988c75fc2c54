// Package capture forwards errors the host framework logs to a remote error
// tracker while keeping the framework's own local exception log.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/xid"

	"github.com/enex/errcapture/exclog"
	"github.com/enex/errcapture/metrics"
)

// Filter decides whether an occurrence of the given type may be reported
// remotely. Occurrences it rejects are still written to the local log.
type Filter func(exclog.Type) bool

// ReportAll is the default Filter: every occurrence is eligible.
func ReportAll(exclog.Type) bool { return true }

// SkipLowPriority rejects low priority errors.
func SkipLowPriority(t exclog.Type) bool { return t != exclog.LowPriorityError }

// Option configures a Hook.
type Option func(*Hook)

// WithLogger sets the process logger the hook reports its own problems to.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hook) {
		h.logger = logger
	}
}

// WithFilter replaces ReportAll. A nil filter is ignored.
func WithFilter(f Filter) Option {
	return func(h *Hook) {
		if f != nil {
			h.filter = f
		}
	}
}

// WithMetrics records hook outcomes to m instead of discarding them.
func WithMetrics(m *metrics.HookMetrics) Option {
	return func(h *Hook) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithConfig replaces DefaultConfig.
func WithConfig(c Config) Option {
	return func(h *Hook) {
		h.config = c
	}
}

// Hook sits where the host framework writes an exception log entry.
type Hook struct {
	base    exclog.Log
	client  Client
	config  Config
	filter  Filter
	logger  *slog.Logger
	metrics *metrics.HookMetrics

	once    sync.Once
	initErr error
	// set inside once, read by concurrent writers
	level  atomic.Uint32
	remote atomic.Bool
}

// New returns a hook writing through to base and reporting to client.
func New(base exclog.Log, client Client, opts ...Option) *Hook {
	h := &Hook{
		base:    base,
		client:  client,
		config:  DefaultConfig(),
		filter:  ReportAll,
		logger:  slog.Default(),
		metrics: metrics.Discard(),
	}
	h.level.Store(uint32(DefaultMask))
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Initialize computes the handled error mask, sets up the remote client,
// attaches the session user and initializes the base log. Only the first
// call has any effect.
func (h *Hook) Initialize(ctx context.Context, session SessionProvider, opts exclog.Options) error {
	h.once.Do(func() {
		h.level.Store(uint32(h.config.ErrorLevel()))
		h.initRemote(ctx)
		h.setUser(ctx, session)
		h.initErr = h.base.Initialize(opts)
	})
	return h.initErr
}

func (h *Hook) initRemote(ctx context.Context) {
	if !h.config.RemoteEnabled() {
		h.logger.DebugContext(ctx, "remote error reporting disabled",
			"environment", h.config.Environment,
			"dsn_set", h.config.DSN != "")
		return
	}

	err := h.client.Init(Options{
		DSN:              h.config.DSN,
		Environment:      h.config.Environment,
		Release:          h.config.Release,
		ErrorTypes:       h.Level(),
		AttachStacktrace: h.config.AttachStacktrace,
		SendDefaultPII:   h.config.SendDefaultPII,
		Debug:            h.config.Debug,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "remote error reporting init failed", "error", err)
		return
	}
	h.remote.Store(true)

	h.logger.InfoContext(ctx, "remote error reporting initialized",
		"environment", h.config.Environment,
		"error_types", h.Level().String())
}

func (h *Hook) setUser(ctx context.Context, session SessionProvider) {
	if session == nil || !session.IsAuthorized() {
		return
	}
	u := userFromSession(session)
	h.client.SetUser(u)
	h.logger.DebugContext(ctx, "attached user to remote scope", "user_id", u.ID)
}

// Level is the handled error mask. It is DefaultMask before Initialize.
func (h *Hook) Level() Mask {
	return Mask(h.level.Load())
}

// Write reports value remotely when it is an eligible error and always
// writes it to the base log. Only the base log's error is returned.
func (h *Hook) Write(value any, logType exclog.Type) error {
	defer metrics.MeasureSince(h.metrics.WriteDuration, time.Now())

	rec := exclog.Record{Value: value, Type: logType}

	if !h.filter(logType) {
		h.metrics.Filtered.Add(1)
	} else if err, ok := value.(error); ok && err != nil {
		rec.OccurrenceID = xid.New().String()
		h.report(err, rec)
	} else {
		h.metrics.Skipped.Add(1)
	}

	if err := h.base.Write(rec); err != nil {
		h.metrics.LocalFailures.Add(1)
		return err
	}
	h.metrics.LocalWrites.Add(1)
	return nil
}

func (h *Hook) report(err error, rec exclog.Record) {
	if !h.remote.Load() {
		h.metrics.Skipped.Add(1)
		return
	}
	if kind, ok := KindOf(err); ok && !h.Level().Has(kind) {
		h.metrics.Skipped.Add(1)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.metrics.Failed.Add(1)
			h.logger.Warn("remote capture failed",
				"occurrence_id", rec.OccurrenceID,
				"panic", fmt.Sprint(r))
		}
	}()

	h.client.Capture(err, map[string]string{
		"log_type":      rec.Type.String(),
		"occurrence_id": rec.OccurrenceID,
	})
	h.metrics.Sent.Add(1)
}

// Flush waits up to timeout for queued remote events. A zero timeout uses
// the configured flush timeout.
func (h *Hook) Flush(timeout time.Duration) bool {
	if !h.remote.Load() {
		return true
	}
	if timeout <= 0 {
		timeout = h.config.FlushTimeout
	}
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	return h.client.Flush(timeout)
}

const (
	flushAttempts   = 2
	flushRetryDelay = 100 * time.Millisecond
)

var errFlushTimeout = errors.New("remote flush timeout")

// Close flushes the remote client and closes the base log.
func (h *Hook) Close() error {
	var result error
	err := retry.Do(
		func() error {
			if !h.Flush(0) {
				return errFlushTimeout
			}
			return nil
		},
		retry.Attempts(flushAttempts),
		retry.Delay(flushRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			h.logger.Debug("retrying remote flush", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if err := h.base.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
