package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/telemetry"
	"github.com/openfroyo/junction/pkg/workspace"
)

// DefaultSettingsFile is read when neither --config nor JUNCTION_CONFIG is set.
const DefaultSettingsFile = "junction.yaml"

var (
	// Global flags
	configPath   string
	platformName string
	tenantName   string
	outputFormat string
	verbose      bool

	// clientFactory replaces the factory derived from the settings when set.
	clientFactory client.Factory

	activeTelemetry *telemetry.Telemetry
	activeWorkspace *workspace.Workspace
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch engine.ClassOf(err) {
	case engine.ErrorClassValidation:
		return 2
	case engine.ErrorClassNotFound:
		return 3
	case engine.ErrorClassRemote:
		return 4
	case engine.ErrorClassConfig:
		return 5
	default:
		return 1
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "junction",
		Short: "Junction - processor deployment for managed platforms",
		Long: `Junction deploys processors onto a managed platform and binds their
junctions to platform resources.

Features:
  - Processor and resource catalogues in YAML, CUE or Starlark
  - Junction, parameter and profile validation before any platform call
  - Deployment templates resolved per platform and tenant
  - Deploy, start, stop, status and undeploy through the control-plane API
  - Rego admission policies and a local operation journal`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case outputTable, outputJSON, outputYAML:
			default:
				return engine.NewValidationError(fmt.Sprintf("unknown output format '%s'", outputFormat), nil)
			}
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (default $JUNCTION_CONFIG or ./junction.yaml)")
	rootCmd.PersistentFlags().StringVarP(&platformName, "platform", "p", "", "target platform (default $JUNCTION_PLATFORM or the settings default)")
	rootCmd.PersistentFlags().StringVarP(&tenantName, "tenant", "t", "", "target tenant (default $JUNCTION_TENANT or the settings default)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newProcessorCommand())
	rootCmd.AddCommand(newResourceCommand())
	rootCmd.AddCommand(newTemplateCommand())
	rootCmd.AddCommand(newPlatformCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

func settingsPath() string {
	if configPath != "" {
		return configPath
	}
	if path := os.Getenv(config.EnvSettings); path != "" {
		return path
	}
	return DefaultSettingsFile
}

func loadSettings() (*config.Settings, error) {
	return config.LoadSettings(settingsPath())
}

// openWorkspace loads the settings, starts telemetry and returns the
// workspace the command operates on. The command context carries the
// telemetry afterwards.
func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	cfg := settings.Telemetry
	if cfg == nil {
		cfg = telemetry.DefaultConfig()
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, engine.NewConfigError("failed to initialize telemetry", err).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	shutdown()
	activeTelemetry = tel
	cmd.SetContext(tel.WithContext(cmd.Context()))

	log.Debug().
		Str("settings", settingsPath()).
		Str("processors", settings.ProcessorDir).
		Str("resources", settings.ResourceDir).
		Msg("Opening workspace")

	ws := workspace.New(settings, workspace.Options{
		Platform: platformName,
		Tenant:   tenantName,
		Factory:  clientFactory,
		Metrics:  tel.Metrics,
	})
	activeWorkspace = ws
	return ws, nil
}

// shutdown closes the workspace and flushes telemetry.
func shutdown() {
	if activeWorkspace != nil {
		if err := activeWorkspace.Close(); err != nil {
			log.Warn().Err(err).Msg("Workspace close failed")
		}
		activeWorkspace = nil
	}
	shutdownTelemetry()
}

func shutdownTelemetry() {
	if activeTelemetry == nil {
		return
	}
	if err := activeTelemetry.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	activeTelemetry = nil
}
