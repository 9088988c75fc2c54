package exclog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/enex/errcapture/internal/logging"
)

// FileLog writes one JSON line per record to a size-bounded file.
type FileLog struct {
	mu     sync.Mutex
	file   *rotatingFile
	logger *logging.Logger
	host   string
}

// NewFileLog returns an uninitialized file log. Initialize opens the file.
func NewFileLog() *FileLog {
	return &FileLog{}
}

func (l *FileLog) Initialize(opts Options) error {
	if opts.File == "" {
		return fmt.Errorf("exception log file is required")
	}
	if opts.LogSize <= 0 {
		opts.LogSize = DefaultLogSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger != nil {
		return fmt.Errorf("exception log %q already initialized", l.file.path)
	}

	rf, err := openRotatingFile(opts.File, opts.LogSize)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Writer(rf), logging.Debug())
	if err != nil {
		_ = rf.Close()
		return err
	}

	l.file = rf
	l.logger = logger
	l.host, _ = os.Hostname()
	return nil
}

func (l *FileLog) Write(r Record) error {
	l.mu.Lock()
	logger := l.logger
	l.mu.Unlock()

	if logger == nil {
		return fmt.Errorf("exception log not initialized")
	}

	attrs := []slog.Attr{
		slog.String("type", r.Type.String()),
	}
	if l.host != "" {
		attrs = append(attrs, slog.String("host", l.host))
	}
	if r.OccurrenceID != "" {
		attrs = append(attrs, slog.String("occurrence_id", r.OccurrenceID))
	}
	if err, ok := r.Value.(error); ok {
		attrs = append(attrs, errorAttrs(err)...)
	}

	ctx := context.Background()
	h := logger.Handler()
	if !h.Enabled(ctx, r.Type.Level()) {
		return nil
	}
	rec := slog.NewRecord(time.Now(), r.Type.Level(), r.Message(), 0)
	rec.AddAttrs(attrs...)
	if err := h.Handle(ctx, rec); err != nil {
		return fmt.Errorf("failed to write exception log: %w", err)
	}
	return nil
}

func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_type", fmt.Sprintf("%T", err)),
	}

	var chain []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 0 {
		attrs = append(attrs, slog.Any("caused_by", chain))
	}

	// errors that format a stack with %+v keep it, the rest get the
	// stack of whoever wrote the record
	if detail := fmt.Sprintf("%+v", err); detail != err.Error() {
		attrs = append(attrs, slog.String("trace", detail))
	} else {
		attrs = append(attrs, slog.String("trace", callerStack(4)))
	}

	return attrs
}

const maxStackDepth = 32

// callerStack formats the stack above skip frames, one "func\n\tfile:line"
// pair per frame.
func callerStack(skip int) string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger == nil {
		return nil
	}
	err := l.logger.Close()
	l.logger = nil
	return err
}
