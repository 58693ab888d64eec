package fileexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogExporter writes log records as JSON to a file.
type LogExporter struct {
	sink  *fileSink
	inner *stdoutlog.Exporter
}

var _ sdklog.Exporter = (*LogExporter)(nil)

// NewLogExporter opens the destination named by OTEL_FILE_LOG_EXPORTER_NAME
// (default otel_logs.log) for appending.
func NewLogExporter(opts ...Option) (*LogExporter, error) {
	o := newOptions(logVar, opts)

	sink, err := openSink(o.path)
	if err != nil {
		return nil, err
	}

	stdoutOpts := []stdoutlog.Option{stdoutlog.WithWriter(sink)}
	if o.prettyPrint {
		stdoutOpts = append(stdoutOpts, stdoutlog.WithPrettyPrint())
	}
	if o.noTimestamps {
		stdoutOpts = append(stdoutOpts, stdoutlog.WithoutTimestamps())
	}

	inner, err := stdoutlog.New(stdoutOpts...)
	if err != nil {
		_ = sink.close()
		return nil, err
	}

	return &LogExporter{sink: sink, inner: inner}, nil
}

// Path returns the destination file.
func (e *LogExporter) Path() string {
	return e.sink.path
}

// Export writes records to the file.
func (e *LogExporter) Export(ctx context.Context, records []sdklog.Record) error {
	return e.inner.Export(ctx, records)
}

// ForceFlush flushes the inner exporter and syncs the file.
func (e *LogExporter) ForceFlush(ctx context.Context) error {
	return errors.Join(e.inner.ForceFlush(ctx), e.sink.sync())
}

// Shutdown stops the exporter and closes the file.
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return errors.Join(e.inner.Shutdown(ctx), e.sink.close())
}
