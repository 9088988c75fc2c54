// Package exclog is the local exception log the capture hook always writes
// through to. It mirrors a host framework's file exception handler: one
// record per occurrence, size-bounded with a single ".old" generation.
package exclog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Type classifies a single occurrence as the host framework reports it.
type Type int

const (
	UncaughtException Type = iota
	CaughtException
	IgnoredError
	LowPriorityError
	Assertion
	Fatal
)

var typeNames = map[Type]string{
	UncaughtException: "UNCAUGHT_EXCEPTION",
	CaughtException:   "CAUGHT_EXCEPTION",
	IgnoredError:      "IGNORED_ERROR",
	LowPriorityError:  "LOW_PRIORITY_ERROR",
	Assertion:         "ASSERTION",
	Fatal:             "FATAL",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TYPE_%d", int(t))
}

// Level is the slog level a record of this type is written at.
func (t Type) Level() slog.Level {
	switch t {
	case CaughtException, IgnoredError:
		return slog.LevelWarn
	case LowPriorityError:
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}

// ParseType accepts the upper-case names returned by String, in any case
// and with "-" or "_" separators.
func ParseType(s string) (Type, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for t, n := range typeNames {
		if n == norm {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown log type %q", s)
}

// Record is one occurrence handed to a Log.
type Record struct {
	// Value is either an error or a plain message.
	Value        any
	Type         Type
	OccurrenceID string
}

// Message is the text written for the record value.
func (r Record) Message() string {
	switch v := r.Value.(type) {
	case nil:
		return ""
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Options are the framework-level settings of the log.
type Options struct {
	File    string
	LogSize int64
}

const DefaultLogSize int64 = 1 << 20

// Log is the base behavior the capture hook delegates to.
type Log interface {
	Initialize(opts Options) error
	Write(r Record) error
	Close() error
}

// Discard drops every record.
var Discard Log = discard{}

type discard struct{}

func (discard) Initialize(Options) error { return nil }
func (discard) Write(Record) error       { return nil }
func (discard) Close() error             { return nil }
