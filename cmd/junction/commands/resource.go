package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/engine"
)

func newResourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources"},
		Short:   "Inspect platform resources",
	}

	cmd.AddCommand(newResourceListCommand())
	cmd.AddCommand(newResourceShowCommand())
	cmd.AddCommand(newResourceStatusCommand())

	return cmd
}

// resourceTypes returns the selected type, or every type when raw is empty.
func resourceTypes(raw string) ([]engine.ResourceType, error) {
	if raw == "" {
		return engine.ResourceTypes(), nil
	}
	t, err := engine.ParseResourceType(raw)
	if err != nil {
		return nil, err
	}
	return []engine.ResourceType{t}, nil
}

func newResourceListCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := resourceTypes(typeName)
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			resources, err := ws.Resources()
			if err != nil {
				return err
			}

			var descriptors []engine.ResourceDescriptor
			for _, t := range types {
				descriptors = append(descriptors, resources.ResourceDescriptors(t)...)
			}

			return render(cmd, descriptors, func(w io.Writer) {
				row(w, "TYPE", "ID", "ADDRESS", "ACCESS", "LABEL")
				for _, d := range descriptors {
					row(w, d.Type, d.ID, d.Address, access(d), d.Label)
				}
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "only list resources of this type")
	return cmd
}

func access(d engine.ResourceDescriptor) string {
	var modes []string
	if d.Readable {
		modes = append(modes, "read")
	}
	if d.Writable {
		modes = append(modes, "write")
	}
	if len(modes) == 0 {
		return "-"
	}
	return strings.Join(modes, ",")
}

func newResourceShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource>",
		Short: "Show a resource",
		Example: `  junction resource show topic:stream.weather
  junction resource show stream.weather`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := engine.ParseResourceIdentifier(args[0])
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			resources, err := ws.Resources()
			if err != nil {
				return err
			}
			descriptor, err := resources.ResourceDescriptor(id.Type, id.ID)
			if err != nil {
				return err
			}
			return render(cmd, descriptor, nil)
		},
	}
}

func newResourceStatusCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "status [resource]",
		Short: "Query the platform for resource status",
		Long: `Query the platform for the allocation status of one resource, or of
every resource when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			resources, err := ws.Resources()
			if err != nil {
				return err
			}
			tc, err := ws.Target()
			if err != nil {
				return err
			}

			var results []engine.ResourceDescriptorWithStatus
			if len(args) == 1 {
				id, err := engine.ParseResourceIdentifier(args[0])
				if err != nil {
					return err
				}
				descriptor, err := resources.ResourceDescriptor(id.Type, id.ID)
				if err != nil {
					return err
				}
				status, err := resources.ResourceStatus(cmd.Context(), id, tc)
				if err != nil {
					return err
				}
				results = append(results, engine.ResourceDescriptorWithStatus{Descriptor: *descriptor, Status: *status})
			} else {
				types, err := resourceTypes(typeName)
				if err != nil {
					return err
				}
				for _, t := range types {
					batch, err := resources.ResourceDescriptorsWithStatus(cmd.Context(), t, tc)
					if err != nil {
						return err
					}
					results = append(results, batch...)
				}
			}

			return render(cmd, results, func(w io.Writer) {
				row(w, "TYPE", "ID", "ADDRESS", "UP", "NOTIFICATIONS")
				for _, r := range results {
					row(w, r.Descriptor.Type, r.Descriptor.ID, r.Descriptor.Address, r.Status.Up,
						strings.Join(r.Status.Notifications, "; "))
				}
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "only query resources of this type")
	return cmd
}
