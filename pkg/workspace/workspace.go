// Package workspace assembles the registries and the target context an
// invocation operates on. Every part is built at most once, on first use,
// and shared by all callers afterwards.
package workspace

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/client/memory"
	"github.com/openfroyo/junction/pkg/client/rest"
	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/journal"
	"github.com/openfroyo/junction/pkg/policy"
	"github.com/openfroyo/junction/pkg/processor"
	"github.com/openfroyo/junction/pkg/processor/service"
	"github.com/openfroyo/junction/pkg/resource"
	"github.com/openfroyo/junction/pkg/target"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Options selects what a workspace is built from.
type Options struct {
	// Platform and Tenant select the target. Empty means the settings default.
	Platform string
	Tenant   string

	// Factory overrides the client factory derived from the settings.
	Factory client.Factory

	// Metrics receives the realization counts once the registries are built.
	Metrics *telemetry.Metrics

	// Getenv reads secrets. Defaults to os.Getenv.
	Getenv func(string) string
}

// Workspace is the explicit replacement of process-wide registries. Safe for
// concurrent use.
type Workspace struct {
	settings *config.Settings
	opts     Options
	loader   *config.Loader

	resources  func() (*resource.Registry, error)
	processors func() (*processor.Registry, error)
	policy     func() (*policy.Engine, error)
	journal    func() (*journal.Journal, error)
	target     func() (*target.Context, error)
	factory    func() client.Factory

	opened atomic.Pointer[journal.Journal]
}

// New creates a workspace from settings. Nothing is loaded until first use.
func New(settings *config.Settings, opts Options) *Workspace {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	w := &Workspace{
		settings: settings,
		opts:     opts,
		loader:   config.NewLoader(),
	}
	w.resources = sync.OnceValues(w.loadResources)
	w.processors = sync.OnceValues(w.loadProcessors)
	w.policy = sync.OnceValues(w.loadPolicy)
	w.journal = sync.OnceValues(w.openJournal)
	w.target = sync.OnceValues(w.buildTarget)
	w.factory = sync.OnceValue(w.buildFactory)
	return w
}

// Load reads the settings file at path and creates a workspace from it.
func Load(path string, opts Options) (*Workspace, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return New(settings, opts), nil
}

// Settings returns the settings the workspace was created from.
func (w *Workspace) Settings() *config.Settings {
	return w.settings
}

// Options returns the options the workspace was created with.
func (w *Workspace) Options() Options {
	return w.opts
}

// Loader returns the configuration loader.
func (w *Workspace) Loader() *config.Loader {
	return w.loader
}

// Resources returns the resource registry, loading it on first use.
func (w *Workspace) Resources() (*resource.Registry, error) {
	return w.resources()
}

// Processors returns the processor registry, loading it and the resource
// registry it depends on at first use.
func (w *Workspace) Processors() (*processor.Registry, error) {
	return w.processors()
}

// Policy returns the admission policy engine, or nil when no policy
// directory is configured.
func (w *Workspace) Policy() (*policy.Engine, error) {
	return w.policy()
}

// Journal returns the operation journal, opening it on first use, or nil
// when no journal is configured.
func (w *Workspace) Journal() (*journal.Journal, error) {
	return w.journal()
}

// Close releases the journal if it was opened.
func (w *Workspace) Close() error {
	if j := w.opened.Load(); j != nil {
		return j.Close()
	}
	return nil
}

// Target returns the selected target context.
func (w *Workspace) Target() (*target.Context, error) {
	return w.target()
}

func (w *Workspace) loadResources() (*resource.Registry, error) {
	registry, err := resource.Load(w.loader, w.settings.ResourceDir)
	if err != nil {
		return nil, err
	}
	for _, t := range engine.ResourceTypes() {
		w.opts.Metrics.SetRealizationCount("resource", string(t), registry.Count(t))
	}
	return registry, nil
}

func (w *Workspace) loadProcessors() (*processor.Registry, error) {
	resources, err := w.resources()
	if err != nil {
		return nil, err
	}
	var opts []service.Option
	eng, err := w.policy()
	if err != nil {
		return nil, err
	}
	if eng != nil {
		opts = append(opts, service.WithPolicy(eng))
	}
	registry, err := processor.Load(w.loader, w.settings.ProcessorDir, resources, opts...)
	if err != nil {
		return nil, err
	}
	for _, t := range engine.ProcessorTechnologies() {
		w.opts.Metrics.SetRealizationCount("processor", string(t), registry.Count(t))
	}
	return registry, nil
}

func (w *Workspace) loadPolicy() (*policy.Engine, error) {
	if w.settings.PolicyDir == "" {
		return nil, nil
	}
	return policy.Load(context.Background(), w.settings.PolicyDir)
}

func (w *Workspace) openJournal() (*journal.Journal, error) {
	if w.settings.Journal == "" {
		return nil, nil
	}
	j, err := journal.Open(context.Background(), w.settings.Journal)
	if err != nil {
		return nil, err
	}
	w.opened.Store(j)
	return j, nil
}

func (w *Workspace) buildTarget() (*target.Context, error) {
	platform, err := w.settings.Platform(w.opts.Platform)
	if err != nil {
		return nil, err
	}
	tenant, err := w.settings.Tenant(w.opts.Tenant)
	if err != nil {
		return nil, err
	}
	name, err := ident.Parse[ident.Tenant](tenant.Name)
	if err != nil {
		return nil, engine.NewConfigError("invalid tenant name", err).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	return target.New(platform, target.Tenant{Name: name, User: tenant.User}, w.factory()), nil
}

func (w *Workspace) buildFactory() client.Factory {
	if w.opts.Factory != nil {
		return w.opts.Factory
	}
	if w.settings.Client.Mode == config.ClientModeMemory {
		return memory.New()
	}
	return rest.NewFactory(w.restOptions)
}

// restOptions resolves the endpoints and credentials of target from the settings.
func (w *Workspace) restOptions(t client.Target) (rest.Options, error) {
	platform, err := w.settings.Platform(t.Platform)
	if err != nil {
		return rest.Options{}, err
	}
	tenant, err := w.settings.Tenant(t.Tenant)
	if err != nil {
		return rest.Options{}, err
	}
	secret, err := tenant.Secret(w.opts.Getenv)
	if err != nil {
		return rest.Options{}, err
	}
	return rest.Options{
		BaseURL:      platform.RestAPI(),
		TokenURL:     platform.AccessToken(),
		ClientID:     tenant.ClientIDFor(platform.Name),
		ClientSecret: secret,
	}, nil
}

// Instance returns an instance of the processor realization id bound to the
// selected target. Its lifecycle operations are journaled when a journal is
// configured.
func (w *Workspace) Instance(id engine.ProcessorIdentifier, pipeline *ident.PipelineID, processorID ident.ProcessorID) (engine.ProcessorInstance, error) {
	processors, err := w.Processors()
	if err != nil {
		return nil, err
	}
	tc, err := w.Target()
	if err != nil {
		return nil, err
	}
	realization, err := processors.Processor(id)
	if err != nil {
		return nil, err
	}
	instance, err := realization.ProcessorInstance(pipeline, processorID, tc)
	if err != nil {
		return nil, err
	}

	j, err := w.Journal()
	if err != nil {
		return nil, err
	}
	if j == nil {
		return instance, nil
	}
	return journal.Record(instance, j, journal.Target{
		Platform: tc.Platform().Name,
		Tenant:   tc.Tenant().Name.String(),
	}), nil
}

// Preload builds every part of the workspace, so configuration errors
// surface before any operation runs.
func (w *Workspace) Preload(ctx context.Context) error {
	logger := telemetry.FromContext(ctx).NewComponentLogger("workspace")

	if _, err := w.Processors(); err != nil {
		return err
	}
	tc, err := w.Target()
	if err != nil {
		return err
	}
	logger.Debugf("workspace ready for %s", tc)
	return nil
}
