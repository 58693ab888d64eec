// Package main implements otelrun, which runs a script inside a single
// OpenTelemetry span and exports it with the configured exporters.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/otelcontrib/internal/config"
	"github.com/fyrsmithlabs/otelcontrib/internal/logging"
	"github.com/fyrsmithlabs/otelcontrib/pkg/exithook"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd(exithook.Default).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	hooks      *exithook.Hooks
	configPath string
	logLevel   string
}

func newRootCmd(hooks *exithook.Hooks) *cobra.Command {
	a := &app{hooks: hooks}

	rootCmd := &cobra.Command{
		Use:   "otelrun",
		Short: "Run scripts inside an OpenTelemetry span",
		Long: `otelrun runs a script as a child process and records the whole run as one
OpenTelemetry span named after the script file.

Trace context is read from TRACEPARENT, TRACESTATE and BAGGAGE and written
back for the child, so nested otelrun invocations form a single trace.

Spans are appended to otel_traces.log by default; see "otelrun env".`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newEnvCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// loadConfig layers the config file and OTEL_* environment over the defaults.
func (a *app) loadConfig() (*Config, error) {
	cfg := NewDefaultConfig()
	if err := config.Load(a.configPath, envBindings, cfg); err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		level, err := logging.LevelFromString(a.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = level
	}
	return cfg, nil
}
