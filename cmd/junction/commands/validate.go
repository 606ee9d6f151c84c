package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/telemetry"
	"github.com/openfroyo/junction/pkg/workspace"
)

func newValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the processor, resource and policy catalogues",
		Long: `Validate the processor, resource and policy catalogues.

This command checks:
  - YAML, CUE and Starlark syntax and schema conformance
  - Junction resource types and template placeholders
  - Rego policy syntax
  - Descriptor resolution for the selected platform and tenant

With --watch the catalogues are validated again after every change until
interrupted, and metrics are served when telemetry.metrics.listen-address
is set.`,
		Example: `  # Validate once
  junction validate

  # Keep validating while editing processor files
  junction validate --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			if !watch {
				summary, err := ws.Check(cmd.Context())
				if err != nil {
					return err
				}
				return renderSummary(cmd, summary)
			}

			if tel := telemetry.FromTelemetryContext(cmd.Context()); tel != nil {
				if err := tel.StartMetricsServer(); err != nil {
					return err
				}
			}

			return workspace.Watch(cmd.Context(), ws.Settings(), ws.Options(), workspace.DefaultWatchDelay,
				func(summary *workspace.Summary, err error) {
					if err != nil {
						log.Error().Err(err).Msg("Catalogues are invalid")
						return
					}
					if err := renderSummary(cmd, summary); err != nil {
						log.Warn().Err(err).Msg("Failed to render summary")
					}
				})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "validate again after every change")
	return cmd
}

func renderSummary(cmd *cobra.Command, summary *workspace.Summary) error {
	return render(cmd, summary, func(w io.Writer) {
		fmt.Fprintf(w, "Catalogues are valid for %s: %d processors, %d resources, %d policies\n",
			summary.Target, summary.Processors, summary.Resources, summary.Policies)
	})
}
