package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/placeholder"
)

func newTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Resolve and validate deployment templates",
	}

	cmd.AddCommand(newTemplateResolveCommand())
	cmd.AddCommand(newTemplateValidateCommand())
	cmd.AddCommand(newTemplateMappingCommand())

	return cmd
}

func newTemplateResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <template>",
		Short:   "Resolve a template for the selected platform and tenant",
		Example: `  junction template resolve 'https://filter-${TENANT}.${PUBLIC_VHOSTS_DOMAIN}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			tc, err := ws.Target()
			if err != nil {
				return err
			}
			resolved, err := placeholder.Resolve(args[0], tc.TemplateMapping())
			if err != nil {
				return engine.NewValidationError("failed to resolve template", err).
					WithCode(engine.ErrCodeInvalidTemplate)
			}
			return render(cmd, map[string]string{"template": args[0], "resolved": resolved}, func(w io.Writer) {
				fmt.Fprintln(w, resolved)
			})
		},
	}
}

func newTemplateValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <template>",
		Short: "Check that a template only uses known placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := placeholder.Validate(args[0], placeholder.All()); err != nil {
				return engine.NewValidationError("invalid template", err).
					WithCode(engine.ErrCodeInvalidTemplate)
			}
			return render(cmd, map[string]any{"template": args[0], "valid": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Template is valid")
			})
		},
	}
}

func newTemplateMappingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping",
		Short: "Show the placeholder values of the selected platform and tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			tc, err := ws.Target()
			if err != nil {
				return err
			}
			mapping := tc.TemplateMapping()

			values := make(map[string]string, len(mapping))
			for p, v := range mapping {
				values[p.String()] = v
			}
			return render(cmd, values, func(w io.Writer) {
				row(w, "PLACEHOLDER", "VALUE")
				for _, p := range mapping.Keys() {
					row(w, p.Marker(), mapping[p])
				}
			})
		},
	}
}
