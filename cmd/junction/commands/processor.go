package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/processor/protocol"
	"github.com/openfroyo/junction/pkg/workspace"
)

func newProcessorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "processor",
		Aliases: []string{"processors"},
		Short:   "Inspect and deploy processors",
	}

	cmd.AddCommand(newProcessorListCommand())
	cmd.AddCommand(newProcessorShowCommand())
	cmd.AddCommand(newProcessorCompatibleCommand())
	cmd.AddCommand(newProcessorDeployCommand())
	cmd.AddCommand(newProcessorLifecycleCommand("start", "Start a deployed service"))
	cmd.AddCommand(newProcessorLifecycleCommand("stop", "Stop a running service"))
	cmd.AddCommand(newProcessorLifecycleCommand("undeploy", "Remove a deployed service"))
	cmd.AddCommand(newProcessorStatusCommand())

	return cmd
}

func newProcessorListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processor realizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			processors, err := ws.Processors()
			if err != nil {
				return err
			}
			tc, err := ws.Target()
			if err != nil {
				return err
			}
			descriptors, err := processors.ProcessorDescriptors(tc.TemplateMapping())
			if err != nil {
				return err
			}

			return render(cmd, descriptors, func(w io.Writer) {
				row(w, "ID", "TECHNOLOGY", "VERSION", "LABEL")
				for _, d := range descriptors {
					row(w, d.ID, d.Technology, d.Version, d.Label)
				}
			})
		},
	}
}

func newProcessorShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <processor>",
		Short: "Show a processor realization",
		Example: `  # Show the filter processor with templates resolved for the default tenant
  junction processor show filter`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			descriptor, err := describe(ws, args[0])
			if err != nil {
				return err
			}
			return render(cmd, descriptor, nil)
		},
	}
}

func newProcessorCompatibleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compatible <processor> <junction>",
		Short: "List the resources a junction can be bound to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			descriptor, err := describe(ws, args[0])
			if err != nil {
				return err
			}
			junction, err := parseIdent[ident.Junction](args[1])
			if err != nil {
				return err
			}
			resources, err := ws.Resources()
			if err != nil {
				return err
			}

			ids := protocol.CompatibleResources(descriptor, junction, resources)
			return render(cmd, ids, func(w io.Writer) {
				row(w, "RESOURCE")
				for _, id := range ids {
					row(w, id)
				}
			})
		},
	}
}

// instanceFlags select the deployment identity of an instance.
type instanceFlags struct {
	name     string
	pipeline string
	service  string
}

func (f *instanceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "processor id of the instance")
	cmd.Flags().StringVar(&f.pipeline, "pipeline", "", "pipeline the instance belongs to")
	cmd.Flags().StringVar(&f.service, "service", "", "service name (default <pipeline>-<name>)")
	_ = cmd.MarkFlagRequired("name")
}

// instance creates the instance of realization and returns it with the
// service name to act on.
func (f *instanceFlags) instance(ws *workspace.Workspace, realization string) (engine.ProcessorInstance, ident.ServiceName, error) {
	id, err := engine.ParseProcessorIdentifier(realization)
	if err != nil {
		return nil, ident.ServiceName{}, err
	}
	processorID, err := parseIdent[ident.Processor](f.name)
	if err != nil {
		return nil, ident.ServiceName{}, err
	}
	var pipeline *ident.PipelineID
	if f.pipeline != "" {
		p, err := parseIdent[ident.Pipeline](f.pipeline)
		if err != nil {
			return nil, ident.ServiceName{}, err
		}
		pipeline = &p
	}

	instance, err := ws.Instance(id, pipeline, processorID)
	if err != nil {
		return nil, ident.ServiceName{}, err
	}

	service := instance.ServiceName()
	if f.service != "" {
		if service, err = parseIdent[ident.Service](f.service); err != nil {
			return nil, ident.ServiceName{}, err
		}
	}
	return instance, service, nil
}

func newProcessorDeployCommand() *cobra.Command {
	var (
		identity instanceFlags
		inbound  []string
		outbound []string
		params   []string
		profile  string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <processor>",
		Short: "Deploy a processor as a platform service",
		Long: `Deploy a processor as a platform service.

The request is validated before anything is sent to the platform:
  - every junction exists and its bound resources are compatible
  - junction cardinalities hold
  - parameters are declared and their values valid
  - the profile exists, or is the only one`,
		Example: `  # Deploy the filter processor reading one topic and writing another
  junction processor deploy filter --name filter1 --pipeline weather \
    --in input=topic:stream.weather --out output=stream.alerts \
    --param threshold=10 --profile small

  # Show the resolved service configuration without deploying
  junction processor deploy filter --name filter1 --in input=stream.weather --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			instance, service, err := identity.instance(ws, args[0])
			if err != nil {
				return err
			}

			req := &engine.DeploymentRequest{ServiceName: service}
			if req.InboundJunctions, err = parseBindings(inbound); err != nil {
				return err
			}
			if req.OutboundJunctions, err = parseBindings(outbound); err != nil {
				return err
			}
			if req.Parameters, err = parseParameters(params); err != nil {
				return err
			}
			if profile != "" {
				p, err := parseIdent[ident.Profile](profile)
				if err != nil {
					return err
				}
				req.Profile = &p
			}

			log.Info().
				Str("processor", args[0]).
				Str("service", service.String()).
				Bool("dry_run", dryRun).
				Msg("Deploying processor")

			if dryRun {
				preview, err := instance.DeployDryRun(cmd.Context(), req)
				if err != nil {
					return err
				}
				return render(cmd, preview, nil)
			}

			if err := instance.Deploy(cmd.Context(), req); err != nil {
				return err
			}
			return render(cmd, map[string]any{"service": service, "accepted": true}, func(w io.Writer) {
				fmt.Fprintf(w, "Deploy request for service %s accepted\n", service)
			})
		},
	}

	identity.register(cmd)
	cmd.Flags().StringArrayVar(&inbound, "in", nil, "inbound binding junction=resource[,resource] (repeatable)")
	cmd.Flags().StringArrayVar(&outbound, "out", nil, "outbound binding junction=resource[,resource] (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "deployment parameter key=value (repeatable)")
	cmd.Flags().StringVar(&profile, "profile", "", "deployment profile")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and print the service configuration without deploying")

	return cmd
}

func newProcessorLifecycleCommand(action, short string) *cobra.Command {
	var identity instanceFlags

	cmd := &cobra.Command{
		Use:   action + " <processor>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			instance, service, err := identity.instance(ws, args[0])
			if err != nil {
				return err
			}

			var found bool
			switch action {
			case "start":
				found, err = instance.Start(cmd.Context(), service)
			case "stop":
				found, err = instance.Stop(cmd.Context(), service)
			case "undeploy":
				found, err = instance.Undeploy(cmd.Context(), service)
			}
			if err != nil {
				return err
			}

			return render(cmd, map[string]any{"service": service, "found": found}, func(w io.Writer) {
				if !found {
					fmt.Fprintf(w, "Service %s does not exist\n", service)
					return
				}
				fmt.Fprintf(w, "%s request for service %s accepted\n", action, service)
			})
		},
	}

	identity.register(cmd)
	return cmd
}

func newProcessorStatusCommand() *cobra.Command {
	var identity instanceFlags

	cmd := &cobra.Command{
		Use:   "status <processor>",
		Short: "Show whether a service is up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			instance, service, err := identity.instance(ws, args[0])
			if err != nil {
				return err
			}
			status, err := instance.Status(cmd.Context(), service)
			if err != nil {
				return err
			}

			return render(cmd, map[string]any{"service": service, "up": status.Up}, func(w io.Writer) {
				row(w, "SERVICE", "UP")
				row(w, service, status.Up)
			})
		},
	}

	identity.register(cmd)
	return cmd
}

// describe resolves the descriptor of a processor realization for the
// selected target.
func describe(ws *workspace.Workspace, realization string) (*engine.ProcessorDescriptor, error) {
	id, err := engine.ParseProcessorIdentifier(realization)
	if err != nil {
		return nil, err
	}
	processors, err := ws.Processors()
	if err != nil {
		return nil, err
	}
	r, err := processors.Processor(id)
	if err != nil {
		return nil, err
	}
	tc, err := ws.Target()
	if err != nil {
		return nil, err
	}
	return r.Descriptor(tc.TemplateMapping())
}

func parseIdent[K ident.Kind](raw string) (ident.ID[K], error) {
	id, err := ident.Parse[K](raw)
	if err != nil {
		return id, engine.NewValidationError("invalid argument", err).
			WithCode(engine.ErrCodeInvalidIdentifier)
	}
	return id, nil
}

// parseBindings parses junction=resource[,resource] values. Repeating a
// junction appends to its resources.
func parseBindings(values []string) (map[ident.JunctionID][]engine.ResourceIdentifier, error) {
	bindings := make(map[ident.JunctionID][]engine.ResourceIdentifier, len(values))
	for _, v := range values {
		name, list, ok := strings.Cut(v, "=")
		if !ok || list == "" {
			return nil, engine.NewValidationError(fmt.Sprintf("binding '%s' must be junction=resource[,resource]", v), nil)
		}
		junction, err := parseIdent[ident.Junction](strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		for _, raw := range strings.Split(list, ",") {
			id, err := engine.ParseResourceIdentifier(strings.TrimSpace(raw))
			if err != nil {
				return nil, err
			}
			bindings[junction] = append(bindings[junction], id)
		}
	}
	return bindings, nil
}

// parseParameters parses key=value values. Values may contain '='.
func parseParameters(values []string) (map[ident.ParameterID]string, error) {
	params := make(map[ident.ParameterID]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, engine.NewValidationError(fmt.Sprintf("parameter '%s' must be key=value", v), nil).
				WithCode(engine.ErrCodeInvalidParameter)
		}
		id, err := parseIdent[ident.Parameter](strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		params[id] = value
	}
	return params, nil
}
