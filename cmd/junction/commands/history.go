package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/journal"
)

func newHistoryCommand() *cobra.Command {
	var (
		service string
		limit   int
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded lifecycle operations",
		Long: `Show the deploy, start, stop and undeploy operations recorded in the
journal, newest first. Only operations on the selected platform and tenant
are shown unless --all is given.`,
		Example: `  junction history --service weather-filter1 --limit 10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			j, err := ws.Journal()
			if err != nil {
				return err
			}
			if j == nil {
				return engine.NewConfigError("no journal is configured", nil).
					WithCode(engine.ErrCodeInvalidConfig)
			}

			filter := journal.Filter{Service: service, Limit: limit}
			if !all {
				tc, err := ws.Target()
				if err != nil {
					return err
				}
				filter.Platform = tc.Platform().Name
				filter.Tenant = tc.Tenant().Name.String()
			}

			entries, err := j.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			return render(cmd, entries, func(w io.Writer) {
				row(w, "TIME", "PLATFORM", "TENANT", "SERVICE", "ACTION", "OUTCOME", "ERROR")
				for _, e := range entries {
					msg := ""
					if e.Error != nil {
						msg = *e.Error
					}
					row(w, e.RecordedAt.Local().Format(time.DateTime), e.Platform, e.Tenant, e.Service,
						e.Action, e.Outcome, msg)
				}
			})
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "only show operations on this service")
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultLimit, "maximum number of operations")
	cmd.Flags().BoolVar(&all, "all", false, "show operations on every platform and tenant")
	return cmd
}
