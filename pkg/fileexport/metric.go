package fileexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MetricExporter writes collected metrics as JSON to a file.
type MetricExporter struct {
	sink  *fileSink
	inner sdkmetric.Exporter
}

var _ sdkmetric.Exporter = (*MetricExporter)(nil)

// NewMetricExporter opens the destination named by
// OTEL_FILE_METRIC_EXPORTER_NAME (default otel_metrics.log) for appending.
func NewMetricExporter(opts ...Option) (*MetricExporter, error) {
	o := newOptions(metricVar, opts)

	sink, err := openSink(o.path)
	if err != nil {
		return nil, err
	}

	stdoutOpts := []stdoutmetric.Option{stdoutmetric.WithWriter(sink)}
	if o.prettyPrint {
		stdoutOpts = append(stdoutOpts, stdoutmetric.WithPrettyPrint())
	}
	if o.noTimestamps {
		stdoutOpts = append(stdoutOpts, stdoutmetric.WithoutTimestamps())
	}

	inner, err := stdoutmetric.New(stdoutOpts...)
	if err != nil {
		_ = sink.close()
		return nil, err
	}

	return &MetricExporter{sink: sink, inner: inner}, nil
}

// Path returns the destination file.
func (e *MetricExporter) Path() string {
	return e.sink.path
}

// Temporality delegates to the stdout exporter (cumulative by default).
func (e *MetricExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return e.inner.Temporality(kind)
}

// Aggregation delegates to the stdout exporter.
func (e *MetricExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return e.inner.Aggregation(kind)
}

// Export writes one collection cycle to the file.
func (e *MetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	return e.inner.Export(ctx, rm)
}

// ForceFlush flushes the inner exporter and syncs the file.
func (e *MetricExporter) ForceFlush(ctx context.Context) error {
	return errors.Join(e.inner.ForceFlush(ctx), e.sink.sync())
}

// Shutdown stops the exporter and closes the file.
func (e *MetricExporter) Shutdown(ctx context.Context) error {
	return errors.Join(e.inner.Shutdown(ctx), e.sink.close())
}
