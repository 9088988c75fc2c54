package metrics

import (
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/provider"
)

const defaultTimingUnit = time.Millisecond

// HookMetrics counts what the capture hook does with each occurrence.
type HookMetrics struct {
	Sent          metrics.Counter
	Filtered      metrics.Counter
	Skipped       metrics.Counter
	Failed        metrics.Counter
	LocalWrites   metrics.Counter
	LocalFailures metrics.Counter
	WriteDuration metrics.Histogram
}

// NewHookMetrics creates the hook metrics from p.
func NewHookMetrics(p provider.Provider) *HookMetrics {
	return &HookMetrics{
		Sent:          p.NewCounter("captures_sent_total"),
		Filtered:      p.NewCounter("captures_filtered_total"),
		Skipped:       p.NewCounter("captures_skipped_total"),
		Failed:        p.NewCounter("captures_failed_total"),
		LocalWrites:   p.NewCounter("local_writes_total"),
		LocalFailures: p.NewCounter("local_write_failures_total"),
		WriteDuration: p.NewHistogram("write_duration_ms", 50),
	}
}

// Discard returns hook metrics that record nothing.
func Discard() *HookMetrics {
	c := discard.NewCounter()
	return &HookMetrics{
		Sent:          c,
		Filtered:      c,
		Skipped:       c,
		Failed:        c,
		LocalWrites:   c,
		LocalFailures: c,
		WriteDuration: discard.NewHistogram(),
	}
}

func MeasureSince(h metrics.Histogram, t0 time.Time) {
	measureSince(h, t0, time.Now(), float64(defaultTimingUnit))
}

func measureSince(h metrics.Histogram, t0, t1 time.Time, unit float64) {
	d := t1.Sub(t0)
	if d < 0 {
		d = 0
	}
	h.Observe(float64(d) / unit)
}
