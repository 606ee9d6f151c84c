package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
	"github.com/openfroyo/junction/pkg/processor/protocol"
	"github.com/openfroyo/junction/pkg/target"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Instance drives the service lifecycle for one deployment identity. It
// holds no deployment state.
type Instance struct {
	realization *Realization
	pipeline    *ident.PipelineID
	processor   ident.ProcessorID
	service     ident.ServiceName
	target      *target.Context
}

// Identifier returns the identifier of the backing realization.
func (i *Instance) Identifier() engine.ProcessorIdentifier {
	return i.realization.identifier
}

// PipelineID returns the pipeline of the instance, or nil.
func (i *Instance) PipelineID() *ident.PipelineID {
	return i.pipeline
}

// ProcessorID returns the processor id of the instance.
func (i *Instance) ProcessorID() ident.ProcessorID {
	return i.processor
}

// ServiceName returns the default service name of the instance.
func (i *Instance) ServiceName() ident.ServiceName {
	return i.service
}

// CompatibleResources returns every known resource that may be bound to junction.
func (i *Instance) CompatibleResources(junction ident.JunctionID) []engine.ResourceIdentifier {
	return protocol.CompatibleResources(&i.realization.descriptor, junction, i.realization.resources)
}

// Deploy validates req, resolves the service configuration and submits it.
// Nothing reaches the platform when validation, resolution or admission fails.
func (i *Instance) Deploy(ctx context.Context, req *engine.DeploymentRequest) (err error) {
	ctx, done := i.observe(ctx, "processor.deploy", requestedService(req))
	defer func() { done(err) }()

	preview, cfg, err := i.prepare(ctx, req)
	if err != nil {
		return err
	}

	logger := i.logger(ctx, preview.ServiceName)
	logger.Debugf("deploying image %s with profile %s", cfg.Image, preview.Profile)

	c, err := i.client(ctx, "processor.deploy", preview.ServiceName)
	if err != nil {
		return err
	}
	if err := c.DeployService(ctx, preview.ServiceName.String(), cfg); err != nil {
		logger.WithError(err).Error("deploy request failed")
		return i.remoteError("deploy request failed", "processor.deploy", preview.ServiceName, err)
	}

	logger.Info("deploy request accepted")
	return nil
}

// DeployDryRun validates req and returns the configuration Deploy would submit.
func (i *Instance) DeployDryRun(ctx context.Context, req *engine.DeploymentRequest) (preview *engine.DeploymentPreview, err error) {
	ctx, done := i.observe(ctx, "processor.deploy_dry_run", requestedService(req))
	defer func() { done(err) }()

	preview, _, err = i.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	i.logger(ctx, preview.ServiceName).Debug("dry run resolved")
	return preview, nil
}

// prepare runs every check, resolution and admission step shared by Deploy
// and DeployDryRun.
func (i *Instance) prepare(ctx context.Context, req *engine.DeploymentRequest) (*engine.DeploymentPreview, *client.ServiceConfiguration, error) {
	if req == nil {
		return nil, nil, engine.NewValidationError("deployment request is required", nil).
			WithSubject("processor", i.realization.identifier)
	}

	mapping := i.target.TemplateMapping()
	descriptor, err := i.realization.Descriptor(mapping)
	if err != nil {
		return nil, nil, err
	}

	service := req.ServiceName
	if service.IsZero() {
		service = i.service
	}

	plan, err := protocol.Validate(descriptor, req, service, i.realization.resources)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := i.configuration(descriptor, plan, mapping)
	if err != nil {
		return nil, nil, err
	}

	preview := &engine.DeploymentPreview{
		ServiceName:   plan.ServiceName,
		Technology:    engine.ProcessorTechnologyService,
		Profile:       plan.Profile.ID,
		Configuration: cfg,
	}
	if err := i.admit(ctx, preview); err != nil {
		return nil, nil, err
	}
	return preview, cfg, nil
}

// admit submits the resolved deployment to the realization's policy.
func (i *Instance) admit(ctx context.Context, preview *engine.DeploymentPreview) error {
	if i.realization.policy == nil {
		return nil
	}
	return i.realization.policy.Admit(ctx, &engine.DeploymentReview{
		Platform:   i.target.Platform().Name,
		Tenant:     i.target.Tenant().Name,
		Processor:  i.realization.identifier.String(),
		Instance:   i.processor,
		Pipeline:   i.pipeline,
		Deployment: *preview,
	})
}

// configuration assembles the platform request from a validated plan.
func (i *Instance) configuration(descriptor *engine.ProcessorDescriptor, plan *protocol.Plan, mapping placeholder.Mapping) (*client.ServiceConfiguration, error) {
	svc := i.realization.config.Service

	resolve := func(field, template string) (string, error) {
		resolved, err := placeholder.Resolve(template, mapping)
		if err != nil {
			return "", engine.NewValidationError(fmt.Sprintf("failed to resolve %s", field), err).
				WithCode(engine.ErrCodeInvalidTemplate).
				WithSubject("processor", i.realization.identifier)
		}
		return resolved, nil
	}

	env := make(map[string]string, len(svc.Environment)+len(plan.Bindings))
	for _, name := range slices.Sorted(maps.Keys(svc.Environment)) {
		value := svc.Environment[name]
		if value.IsParameter() {
			id, err := ident.Parse[ident.Parameter](value.Parameter)
			if err != nil {
				return nil, engine.NewValidationError("invalid parameter reference", err).
					WithCode(engine.ErrCodeInvalidParameter)
			}
			// Optional parameters without a value leave the variable unset.
			if v, ok := plan.Parameters[id]; ok {
				env[name] = v
			}
			continue
		}
		resolved, err := resolve("environment variable "+name, value.Value)
		if err != nil {
			return nil, err
		}
		env[name] = resolved
	}
	for _, b := range plan.Bindings {
		if b.Junction.EnvironmentVariable == "" || len(b.Resources) == 0 {
			continue
		}
		env[b.Junction.EnvironmentVariable] = strings.Join(b.Addresses(), ",")
	}

	user := mapping[placeholder.User]
	if svc.User != "" {
		resolved, err := resolve("user", svc.User)
		if err != nil {
			return nil, err
		}
		user = resolved
	}

	var ports map[string]client.Port
	if len(svc.ExposedPorts) > 0 {
		ports = make(map[string]client.Port, len(svc.ExposedPorts))
		for _, name := range slices.Sorted(maps.Keys(svc.ExposedPorts)) {
			port := svc.ExposedPorts[name]
			vhost, err := resolve("vhost of port "+name, port.VHost)
			if err != nil {
				return nil, err
			}
			ports[name] = client.Port{
				Auth:     port.Auth,
				Mode:     port.Mode,
				Protocol: port.Protocol,
				VHost:    vhost,
			}
		}
	}

	var metrics *client.Metrics
	if svc.Metrics != nil {
		metrics = &client.Metrics{Path: svc.Metrics.Path, Port: svc.Metrics.Port}
	}

	return &client.ServiceConfiguration{
		Image:          descriptor.Image,
		CPUs:           plan.Profile.CPUs,
		Mem:            plan.Profile.Mem,
		Instances:      plan.Profile.Instances,
		Env:            env,
		User:           user,
		NeedsToken:     svc.NeedsToken,
		SingleInstance: svc.SingleInstance,
		ExposedPorts:   ports,
		Metrics:        metrics,
		Topics:         plan.Addresses(),
	}, nil
}

// Start starts a deployed service. Returns false if the service does not exist.
func (i *Instance) Start(ctx context.Context, service ident.ServiceName) (bool, error) {
	return i.transition(ctx, "processor.start", service, client.Client.StartService)
}

// Stop stops a running service. Returns false if the service does not exist.
func (i *Instance) Stop(ctx context.Context, service ident.ServiceName) (bool, error) {
	return i.transition(ctx, "processor.stop", service, client.Client.StopService)
}

// Undeploy removes a service. Returns false if the service does not exist.
func (i *Instance) Undeploy(ctx context.Context, service ident.ServiceName) (bool, error) {
	return i.transition(ctx, "processor.undeploy", service, client.Client.UndeployService)
}

func (i *Instance) transition(ctx context.Context, operation string, service ident.ServiceName,
	call func(client.Client, context.Context, string) error) (found bool, err error) {
	ctx, done := i.observe(ctx, operation, service)
	defer func() { done(err) }()

	if service.IsZero() {
		return false, engine.NewValidationError("service name is required", nil).
			WithCode(engine.ErrCodeInvalidIdentifier).
			WithOperation(operation)
	}

	logger := i.logger(ctx, service)
	logger.Debugf("%s requested", operation)

	c, err := i.client(ctx, operation, service)
	if err != nil {
		return false, err
	}

	err = call(c, ctx, service.String())
	if errors.Is(err, client.ErrNotFound) {
		logger.Debug("service does not exist")
		return false, nil
	}
	if err != nil {
		logger.WithError(err).Errorf("%s request failed", operation)
		return false, i.remoteError(operation+" request failed", operation, service, err)
	}
	return true, nil
}

// Status returns the up/down flag of a service. A service the platform does
// not know is a not-found error.
func (i *Instance) Status(ctx context.Context, service ident.ServiceName) (status *engine.ProcessorStatus, err error) {
	const operation = "processor.status"
	ctx, done := i.observe(ctx, operation, service)
	defer func() { done(err) }()

	if service.IsZero() {
		return nil, engine.NewValidationError("service name is required", nil).
			WithCode(engine.ErrCodeInvalidIdentifier).
			WithOperation(operation)
	}

	logger := i.logger(ctx, service)

	c, err := i.client(ctx, operation, service)
	if err != nil {
		return nil, err
	}

	serviceStatus, err := c.ServiceStatus(ctx, service.String())
	if errors.Is(err, client.ErrNotFound) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("service '%s' does not exist", service), err).
			WithCode(engine.ErrCodeServiceNotFound).
			WithOperation(operation).
			WithSubject("service", service)
	}
	if err != nil {
		logger.WithError(err).Error("status request failed")
		return nil, i.remoteError("status request failed", operation, service, err)
	}

	logger.Debugf("service deployed=%t running=%t", serviceStatus.Deployed, serviceStatus.Running)
	return &engine.ProcessorStatus{Up: serviceStatus.Running}, nil
}

func requestedService(req *engine.DeploymentRequest) ident.ServiceName {
	if req == nil {
		return ident.ServiceName{}
	}
	return req.ServiceName
}

func (i *Instance) observe(ctx context.Context, operation string, service ident.ServiceName) (context.Context, func(error)) {
	if service.IsZero() {
		service = i.service
	}
	return telemetry.Observe(ctx, operation,
		telemetry.AttrTechnology.String(string(engine.ProcessorTechnologyService)),
		telemetry.AttrProcessor.String(i.processor.String()),
		telemetry.AttrService.String(service.String()),
		telemetry.AttrPlatform.String(i.target.Platform().Name),
		telemetry.AttrTenant.String(i.target.Tenant().Name.String()),
		attribute.String("processor.realization", i.realization.identifier.String()),
	)
}

func (i *Instance) logger(ctx context.Context, service ident.ServiceName) *telemetry.Logger {
	return telemetry.FromContext(ctx).
		WithTarget(i.target.Platform().Name, i.target.Tenant().Name.String()).
		WithService(service.String()).
		WithProcessor(i.processor.String())
}

func (i *Instance) client(ctx context.Context, operation string, service ident.ServiceName) (client.Client, error) {
	c, err := i.target.Client(ctx)
	if err != nil {
		return nil, engine.NewRemoteError("failed to obtain platform client", err).
			WithCode(engine.ErrCodeAuthentication).
			WithOperation(operation).
			WithSubject("service", service)
	}
	return c, nil
}

func (i *Instance) remoteError(message, operation string, service ident.ServiceName, err error) error {
	return engine.NewRemoteError(message, err).
		WithCode(engine.ErrCodeClient).
		WithOperation(operation).
		WithSubject("processor", i.realization.identifier).
		WithSubject("service", service)
}
