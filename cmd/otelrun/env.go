package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/otelcontrib/pkg/fileexport"
)

func newEnvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show exporter selection and file exporter paths",
		Long: `Show which exporter each signal uses and where the file exporters write.

File paths come from OTEL_FILE_SPAN_EXPORTER_NAME, OTEL_FILE_METRIC_EXPORTER_NAME
and OTEL_FILE_LOG_EXPORTER_NAME, falling back to files in the working
directory. Files are opened in append mode, so repeated runs accumulate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "traces:  %s\n", cfg.Telemetry.Exporters.Traces)
			fmt.Fprintf(out, "metrics: %s\n", cfg.Telemetry.Exporters.Metrics)
			fmt.Fprintf(out, "logs:    %s\n", cfg.Telemetry.Exporters.Logs)
			fmt.Fprintln(out)

			for _, v := range fileexport.EnvVars() {
				source := "env"
				if os.Getenv(v.Name) == "" {
					source = "default"
				}
				fmt.Fprintf(out, "%s=%s (%s)\n", v.Name, v.Resolve(), source)
			}
			return nil
		},
	}
}
