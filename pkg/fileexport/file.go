package fileexport

import (
	"fmt"
	"os"
	"sync"
)

// Environment variables naming the destination file of each exporter.
const (
	SpanPathEnv   = "OTEL_FILE_SPAN_EXPORTER_NAME"
	MetricPathEnv = "OTEL_FILE_METRIC_EXPORTER_NAME"
	LogPathEnv    = "OTEL_FILE_LOG_EXPORTER_NAME"
)

// Default destinations used when the matching variable is unset or empty.
const (
	DefaultSpanPath   = "otel_traces.log"
	DefaultMetricPath = "otel_metrics.log"
	DefaultLogPath    = "otel_logs.log"
)

// EnvVar describes one destination variable.
type EnvVar struct {
	Name    string
	Default string
}

// Resolve returns the variable's value, or the default when unset or empty.
func (v EnvVar) Resolve() string {
	if p := os.Getenv(v.Name); p != "" {
		return p
	}
	return v.Default
}

// EnvVars lists the destination variables in span, metric, log order.
func EnvVars() []EnvVar {
	return []EnvVar{spanVar, metricVar, logVar}
}

var (
	spanVar   = EnvVar{Name: SpanPathEnv, Default: DefaultSpanPath}
	metricVar = EnvVar{Name: MetricPathEnv, Default: DefaultMetricPath}
	logVar    = EnvVar{Name: LogPathEnv, Default: DefaultLogPath}
)

// Option configures a file exporter.
type Option func(*options)

type options struct {
	path         string
	prettyPrint  bool
	noTimestamps bool
}

// WithPath writes to path instead of the environment-selected destination.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithPrettyPrint indents each JSON record.
func WithPrettyPrint() Option {
	return func(o *options) {
		o.prettyPrint = true
	}
}

// WithoutTimestamps zeroes timestamps in the output, which keeps test
// fixtures stable.
func WithoutTimestamps() Option {
	return func(o *options) {
		o.noTimestamps = true
	}
}

func newOptions(v EnvVar, opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.path == "" {
		o.path = v.Resolve()
	}
	return o
}

// fileSink is the append-only file shared by one exporter.
type fileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

func openSink(path string) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %q for OpenTelemetry file exporter: %w", path, err)
	}
	return &fileSink{path: path, file: f}, nil
}

// Write implements io.Writer.
func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, os.ErrClosed
	}
	return s.file.Write(p)
}

func (s *fileSink) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing %q: %w", s.path, err)
	}
	return nil
}

// close is idempotent.
func (s *fileSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", s.path, err)
	}
	return nil
}
