package main

import (
	"fmt"

	"github.com/fyrsmithlabs/otelcontrib/internal/config"
	"github.com/fyrsmithlabs/otelcontrib/internal/logging"
	"github.com/fyrsmithlabs/otelcontrib/internal/telemetry"
)

// Config is the complete otelrun configuration.
type Config struct {
	Telemetry telemetry.Config `koanf:"telemetry"`
	Logging   logging.Config   `koanf:"logging"`
}

// NewDefaultConfig returns the defaults every layer is applied on top of.
func NewDefaultConfig() *Config {
	return &Config{
		Telemetry: *telemetry.NewDefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// envBindings maps the standard OpenTelemetry SDK variables, plus otelrun's
// own logging variables, onto config keys.
var envBindings = config.EnvBindings{
	"OTEL_SERVICE_NAME":           {Key: "telemetry.service_name"},
	"OTEL_TRACES_EXPORTER":        {Key: "telemetry.exporters.traces"},
	"OTEL_METRICS_EXPORTER":       {Key: "telemetry.exporters.metrics"},
	"OTEL_LOGS_EXPORTER":          {Key: "telemetry.exporters.logs"},
	"OTEL_EXPORTER_OTLP_ENDPOINT": {Key: "telemetry.otlp.endpoint"},
	"OTEL_EXPORTER_OTLP_PROTOCOL": {Key: "telemetry.otlp.protocol"},
	"OTEL_EXPORTER_OTLP_INSECURE": {Key: "telemetry.otlp.insecure"},
	"OTEL_EXPORTER_OTLP_HEADERS":  {Key: "telemetry.otlp.headers"},
	"OTEL_METRIC_EXPORT_INTERVAL": {Key: "telemetry.metrics.export_interval", Transform: config.Milliseconds},
	"OTEL_TRACES_SAMPLER_ARG":     {Key: "telemetry.sampling.rate"},
	"OTELRUN_LOG_LEVEL":           {Key: "logging.level"},
	"OTELRUN_LOG_FORMAT":          {Key: "logging.format"},
}
