package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/otelcontrib/internal/config"
)

// Exporter names accepted by the OTEL_*_EXPORTER settings.
const (
	ExporterFile    = "file"
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
	ExporterNone    = "none"
)

// OTLP wire protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// ErrUnknownExporter is returned for an exporter name outside file, console,
// otlp and none.
var ErrUnknownExporter = errors.New("unknown exporter")

// Config holds telemetry configuration.
type Config struct {
	ServiceName    string          `koanf:"service_name"`
	ServiceVersion string          `koanf:"service_version"`
	Exporters      ExportersConfig `koanf:"exporters"`
	OTLP           OTLPConfig      `koanf:"otlp"`
	Files          FilesConfig     `koanf:"files"`
	Sampling       SamplingConfig  `koanf:"sampling"`
	Metrics        MetricsConfig   `koanf:"metrics"`
	Shutdown       ShutdownConfig  `koanf:"shutdown"`
}

// ExportersConfig selects one exporter per signal.
type ExportersConfig struct {
	Traces  string `koanf:"traces"`
	Metrics string `koanf:"metrics"`
	Logs    string `koanf:"logs"`
}

// OTLPConfig applies to every signal exported with "otlp".
type OTLPConfig struct {
	Endpoint      string        `koanf:"endpoint"` // host:port; a scheme is stripped
	Protocol      string        `koanf:"protocol"`
	Insecure      bool          `koanf:"insecure"`
	TLSSkipVerify bool          `koanf:"tls_skip_verify"`
	Headers       config.Secret `koanf:"headers"` // k=v,k2=v2
}

// FilesConfig overrides the file exporter destinations. Empty paths fall back
// to the OTEL_FILE_*_EXPORTER_NAME variables and then to the defaults.
type FilesConfig struct {
	Traces      string `koanf:"traces"`
	Metrics     string `koanf:"metrics"`
	Logs        string `koanf:"logs"`
	PrettyPrint bool   `koanf:"pretty_print"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0, default 1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults for instrumenting a single script run:
// spans go to a local file, metrics and logs are off.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:    "otelrun",
		ServiceVersion: "dev",
		Exporters: ExportersConfig{
			Traces:  ExporterFile,
			Metrics: ExporterNone,
			Logs:    ExporterNone,
		},
		OTLP: OTLPConfig{
			Protocol: ProtocolGRPC,
		},
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			ExportInterval: config.Duration(60 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}

	for signal, name := range map[string]string{
		"traces":  c.Exporters.Traces,
		"metrics": c.Exporters.Metrics,
		"logs":    c.Exporters.Logs,
	} {
		if !validExporter(name) {
			return fmt.Errorf("exporters.%s: %w %q (want file, console, otlp or none)", signal, ErrUnknownExporter, name)
		}
	}

	if c.usesOTLP() {
		switch c.OTLP.Protocol {
		case "", ProtocolGRPC, ProtocolHTTP:
		default:
			return fmt.Errorf("otlp.protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.OTLP.Protocol)
		}
		// Security: Prevent insecure connections to remote endpoints
		if c.OTLP.Insecure && c.OTLP.Endpoint != "" && !c.isLocalEndpoint() {
			return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
		}
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}

	if c.Exporters.Metrics != ExporterNone && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics are exported")
	}

	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	return nil
}

func validExporter(name string) bool {
	switch name {
	case ExporterFile, ExporterConsole, ExporterOTLP, ExporterNone:
		return true
	}
	return false
}

func (c *Config) usesOTLP() bool {
	return c.Exporters.Traces == ExporterOTLP ||
		c.Exporters.Metrics == ExporterOTLP ||
		c.Exporters.Logs == ExporterOTLP
}

// isLocalEndpoint checks if the endpoint is a local address.
func (c *Config) isLocalEndpoint() bool {
	endpoint := stripScheme(c.OTLP.Endpoint)
	host := endpoint

	// Bracketed IPv6: [::1]:4317 or [::1]
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(endpoint, "::1")
}

// stripScheme removes http:// or https:// and any path from an endpoint.
// The OTLP exporters' WithEndpoint options expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}
