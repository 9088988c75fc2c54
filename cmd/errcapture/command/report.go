package command

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/enex/errcapture/capture"
	"github.com/enex/errcapture/exclog"
	uctx "github.com/enex/errcapture/internal/context"
)

var (
	flagReportType    string
	flagReportKind    string
	flagReportMessage bool
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report MESSAGE...",
		Short: "Report a single error",
		Long: `Report a single error through the capture hook.

The error is always written to the local exception log. It is sent to Sentry
when the environment is not "local", a DSN is configured, and its kind (if
given) is one of the handled error types.`,
		Example: `  # Report an uncaught exception
  $ errcapture report "database is gone"

  # Report a warning-kind error; skipped remotely unless Warning is handled
  $ errcapture report --type ignored_error --kind Warning "division by zero"

  # Write a plain message to the local log only
  $ errcapture report --message "cache warmed"`,
		Args: cobra.MinimumNArgs(1),
		RunE: reportRunE,
	}

	cmd.Flags().StringVar(&flagReportType, "type", exclog.UncaughtException.String(), "log type of the occurrence")
	cmd.Flags().StringVar(&flagReportKind, "kind", "", "runtime error kind, e.g. Warning or Error|Parse")
	cmd.Flags().BoolVar(&flagReportMessage, "message", false, "report a plain message instead of an error")

	return cmd
}

func reportRunE(c *cobra.Command, args []string) error {
	logType, err := exclog.ParseType(flagReportType)
	if err != nil {
		return err
	}

	value, err := reportValue(strings.Join(args, " "), flagReportKind, flagReportMessage)
	if err != nil {
		return err
	}

	ctx := c.Context()
	h, err := startHook(ctx, nil)
	if err != nil {
		return err
	}

	var result error
	if err := h.Write(value, logType); err != nil {
		result = multierror.Append(result, err)
	}
	if err := h.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if result == nil {
		uctx.SlogLogger(ctx).InfoContext(ctx, "reported", "type", logType.String(), "log_file", current.config.LogFile)
	}

	return result
}

// reportValue is the value handed to the hook: a message string, a plain
// error, or an error tagged with a runtime kind.
func reportValue(text, kind string, message bool) (any, error) {
	if message {
		return text, nil
	}

	err := errors.New(text)
	if kind == "" {
		return err, nil
	}

	m, perr := capture.ParseMask(kind)
	if perr != nil {
		return nil, perr
	}
	return capture.WithKind(err, m), nil
}
