package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "policy",
		Aliases: []string{"policies"},
		Short:   "Inspect deployment admission policies",
	}

	cmd.AddCommand(newPolicyListCommand())
	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the policies deployments are checked against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			eng, err := ws.Policy()
			if err != nil {
				return err
			}

			policies := []*policy.Policy{}
			if eng != nil {
				policies = eng.Policies()
			}

			return render(cmd, policies, func(w io.Writer) {
				row(w, "NAME", "PACKAGE", "SEVERITY", "TITLE")
				for _, p := range policies {
					row(w, p.Name, p.Package, p.Severity, p.Title)
				}
			})
		},
	}
}
