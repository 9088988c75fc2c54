package command

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/metrics/provider"

	"github.com/enex/errcapture/capture"
	"github.com/enex/errcapture/exclog"
	uctx "github.com/enex/errcapture/internal/context"
	"github.com/enex/errcapture/metrics"
)

// startHook builds the hook over a file exception log and initializes it
// with the session given on the command line.
func startHook(ctx context.Context, mp provider.Provider, opts ...capture.Option) (*capture.Hook, error) {
	if mp == nil {
		mp = provider.NewDiscardProvider()
	}

	opts = append([]capture.Option{
		capture.WithConfig(current.config),
		capture.WithLogger(uctx.SlogLogger(ctx).With("component", "hook")),
		capture.WithMetrics(metrics.NewHookMetrics(mp)),
	}, opts...)
	h := capture.New(exclog.NewFileLog(), current.client, opts...)

	if err := h.Initialize(ctx, flagSession, current.config.LogOptions()); err != nil {
		return nil, fmt.Errorf("error initializing exception log: %w", err)
	}

	return h, nil
}
