package command

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/enex/errcapture/capture"
	"github.com/enex/errcapture/exclog"
	uctx "github.com/enex/errcapture/internal/context"
)

const maxLineSize = 1 << 20

var (
	flagMetricAddr string
)

// pipeEntry is one line read by the pipe command.
type pipeEntry struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Throwable *bool  `json:"throwable"`
}

func (e pipeEntry) decode() (any, exclog.Type, error) {
	logType := exclog.UncaughtException
	if e.Type != "" {
		t, err := exclog.ParseType(e.Type)
		if err != nil {
			return nil, 0, err
		}
		logType = t
	}

	message := e.Throwable != nil && !*e.Throwable
	value, err := reportValue(e.Message, e.Kind, message)
	if err != nil {
		return nil, 0, err
	}
	return value, logType, nil
}

func pipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Report errors read as JSON lines from stdin",
		Long: `Report errors read as JSON lines from stdin until EOF or a signal.

Each line is an object:
  {"message": "...", "type": "UNCAUGHT_EXCEPTION", "kind": "Warning", "throwable": true}

Only "message" is required. Lines with "throwable": false are written to the
local exception log only. Malformed lines are logged and skipped.`,
		Example: `  # Forward entries and expose Prometheus metrics
  $ tail -F exceptions.jsonl | errcapture pipe --metric-addr 127.0.0.1:9100`,
		RunE: pipeRunE,
	}

	cmd.Flags().StringVar(&flagMetricAddr, "metric-addr", "", "metric server address")

	return cmd
}

func pipeRunE(c *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	logger := uctx.SlogLogger(ctx)

	var mp provider.Provider
	if flagMetricAddr == "" {
		mp = provider.NewDiscardProvider()
	} else {
		mp = provider.NewPrometheusProvider(appName, "hook")
	}
	defer mp.Stop()

	h, err := startHook(ctx, mp)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("error closing hook", "error", err)
		}
	}()

	var g run.Group
	{
		in := c.InOrStdin()
		g.Add(func() error {
			return pipeLines(ctx, in, h, logger)
		}, func(err error) {
			cancel()
			// unblock a pending read from stdin
			if f, ok := in.(*os.File); ok && f == os.Stdin {
				_ = f.Close()
			}
		})
	}
	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	}
	{
		if flagMetricAddr != "" {
			m := &metricServer{}
			g.Add(func() error {
				logger.Info("serving metrics", "addr", flagMetricAddr)
				return m.ListenAndServe(flagMetricAddr)
			}, func(err error) {
				_ = m.Shutdown(context.Background())
			})
		}
	}

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info("stopping", "signal", sigErr.Signal.String())
		return nil
	}
	return err
}

// pipeLines feeds every line of r to the hook. It returns nil at EOF.
func pipeLines(ctx context.Context, r io.Reader, h *capture.Hook, logger *slog.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(sc.Bytes()) == 0 {
			continue
		}

		var entry pipeEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			logger.Warn("skipping malformed line", "line", line, "error", err)
			continue
		}

		value, logType, err := entry.decode()
		if err != nil {
			logger.Warn("skipping invalid entry", "line", line, "error", err)
			continue
		}

		if err := h.Write(value, logType); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
