package scriptinstr

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// runMetrics records one data point per finalized run. A nil instrument was
// not created and is skipped.
type runMetrics struct {
	duration metric.Float64Histogram
	runs     metric.Int64Counter
}

func newRunMetrics(meter metric.Meter, logger *zap.Logger) runMetrics {
	var m runMetrics
	var err error

	m.duration, err = meter.Float64Histogram(
		"script.duration",
		metric.WithDescription("Wall time of an instrumented script run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create script.duration histogram", zap.Error(err))
		m.duration = nil
	}

	m.runs, err = meter.Int64Counter(
		"script.runs",
		metric.WithDescription("Number of instrumented script runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		logger.Warn("failed to create script.runs counter", zap.Error(err))
		m.runs = nil
	}

	return m
}

func (m runMetrics) record(ctx context.Context, name string, code int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		AttrScriptName.String(name),
		AttrExitCode.Int(code),
	)
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.runs != nil {
		m.runs.Add(ctx, 1, attrs)
	}
}

// Attribute keys set on the script span and its metrics.
const (
	AttrScriptFile = attribute.Key("script_file")
	AttrScriptArgs = attribute.Key("script_args")
	AttrExitCode   = attribute.Key("script_exit_code")
	AttrScriptName = attribute.Key("script_name")
)
