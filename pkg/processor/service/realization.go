// Package service implements the service processor technology: processors
// deployed as long-running platform services.
package service

import (
	"fmt"
	"maps"
	"slices"

	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
	"github.com/openfroyo/junction/pkg/processor/protocol"
	"github.com/openfroyo/junction/pkg/target"
)

// Realization is one configured service processor. Immutable after creation.
type Realization struct {
	identifier engine.ProcessorIdentifier
	config     *config.ProcessorConfig

	// descriptor holds parsed identifiers and unresolved templates.
	descriptor engine.ProcessorDescriptor

	resources protocol.Resources
	policy    engine.DeploymentPolicy
}

// Option configures a Realization.
type Option func(*Realization)

// WithPolicy subjects every deployment of the realization to policy. Without
// a policy every valid deployment is admitted.
func WithPolicy(policy engine.DeploymentPolicy) Option {
	return func(r *Realization) {
		r.policy = policy
	}
}

// NewRealization creates a realization from a processor configuration.
// resources answers binding and compatibility queries for its instances.
func NewRealization(cfg *config.ProcessorConfig, resources protocol.Resources, opts ...Option) (*Realization, error) {
	if cfg.Technology != string(engine.ProcessorTechnologyService) {
		return nil, invalid(cfg, fmt.Errorf("technology '%s' is not %s", cfg.Technology, engine.ProcessorTechnologyService))
	}
	if cfg.Service == nil {
		return nil, invalid(cfg, fmt.Errorf("service section is required"))
	}

	id, err := ident.Parse[ident.ProcessorRealization](cfg.ID)
	if err != nil {
		return nil, invalid(cfg, err)
	}

	descriptor := engine.ProcessorDescriptor{
		Technology:  engine.ProcessorTechnologyService,
		ID:          id,
		Label:       cfg.Label,
		Description: cfg.Description,
		Version:     cfg.Version,
		MoreInfoURL: cfg.MoreInfoURL,
		Image:       cfg.Service.Image,
		Metadata:    maps.Clone(cfg.Metadata),
	}

	if descriptor.InboundJunctions, err = junctions(cfg.InboundJunctions, engine.JunctionInbound); err != nil {
		return nil, invalid(cfg, err)
	}
	if descriptor.OutboundJunctions, err = junctions(cfg.OutboundJunctions, engine.JunctionOutbound); err != nil {
		return nil, invalid(cfg, err)
	}

	for _, p := range cfg.DeploymentParameters {
		pid, err := ident.Parse[ident.Parameter](p.ID)
		if err != nil {
			return nil, invalid(cfg, err)
		}
		descriptor.DeploymentParameters = append(descriptor.DeploymentParameters, engine.DeploymentParameterDescriptor{
			ID:          pid,
			Kind:        engine.ParameterKind(p.Kind),
			Label:       p.Label,
			Description: p.Description,
			Optional:    p.Optional,
			Default:     p.Default,
			Options:     slices.Clone(p.Options),
		})
	}
	slices.SortFunc(descriptor.DeploymentParameters, func(a, b engine.DeploymentParameterDescriptor) int {
		return a.ID.Compare(b.ID)
	})

	for _, p := range cfg.Profiles {
		pid, err := ident.Parse[ident.Profile](p.ID)
		if err != nil {
			return nil, invalid(cfg, err)
		}
		descriptor.Profiles = append(descriptor.Profiles, engine.ProfileDescriptor{
			ID:          pid,
			Label:       p.Label,
			Description: p.Description,
			Instances:   p.Instances,
			CPUs:        p.CPUs,
			Mem:         p.Mem,
		})
	}
	slices.SortFunc(descriptor.Profiles, func(a, b engine.ProfileDescriptor) int {
		return a.ID.Compare(b.ID)
	})

	r := &Realization{
		identifier: engine.ProcessorIdentifier{Technology: engine.ProcessorTechnologyService, ID: id},
		config:     cfg,
		descriptor: descriptor,
		resources:  resources,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func junctions(configs []config.JunctionConfig, direction engine.JunctionDirection) ([]engine.JunctionDescriptor, error) {
	descriptors := make([]engine.JunctionDescriptor, 0, len(configs))
	for _, j := range configs {
		id, err := ident.Parse[ident.Junction](j.ID)
		if err != nil {
			return nil, err
		}
		types := make([]engine.ResourceType, 0, len(j.AllowedResourceTypes))
		for _, t := range j.AllowedResourceTypes {
			resourceType, err := engine.ParseResourceType(t)
			if err != nil {
				return nil, err
			}
			types = append(types, resourceType)
		}
		maximum := 0
		if j.Maximum != nil {
			maximum = *j.Maximum
		}
		descriptors = append(descriptors, engine.JunctionDescriptor{
			ID:                   id,
			Direction:            direction,
			Label:                j.Label,
			Description:          j.Description,
			AllowedResourceTypes: types,
			MinimumResources:     j.Minimum,
			MaximumResources:     maximum,
			EnvironmentVariable:  j.EnvironmentVariable,
		})
	}
	slices.SortFunc(descriptors, func(a, b engine.JunctionDescriptor) int {
		return a.ID.Compare(b.ID)
	})
	return descriptors, nil
}

func invalid(cfg *config.ProcessorConfig, err error) error {
	return engine.NewConfigError("invalid service processor configuration", err).
		WithCode(engine.ErrCodeInvalidConfig).
		WithSubjectString("file", cfg.Source)
}

// Identifier returns the global key of the realization.
func (r *Realization) Identifier() engine.ProcessorIdentifier {
	return r.identifier
}

// Label returns the unresolved label.
func (r *Realization) Label() string {
	return r.descriptor.Label
}

// Config returns the configuration the realization was created from.
func (r *Realization) Config() *config.ProcessorConfig {
	return r.config
}

// Descriptor returns the descriptor with every template resolved against
// mapping. Any unresolvable template fails the whole descriptor.
func (r *Realization) Descriptor(mapping placeholder.Mapping) (*engine.ProcessorDescriptor, error) {
	d := r.descriptor
	d.Metadata = maps.Clone(r.descriptor.Metadata)
	d.InboundJunctions = slices.Clone(r.descriptor.InboundJunctions)
	d.OutboundJunctions = slices.Clone(r.descriptor.OutboundJunctions)
	d.DeploymentParameters = slices.Clone(r.descriptor.DeploymentParameters)
	d.Profiles = slices.Clone(r.descriptor.Profiles)

	resolve := func(field string, value *string) error {
		resolved, err := placeholder.Resolve(*value, mapping)
		if err != nil {
			return engine.NewValidationError(fmt.Sprintf("failed to resolve %s", field), err).
				WithCode(engine.ErrCodeInvalidTemplate).
				WithSubject("processor", r.identifier)
		}
		*value = resolved
		return nil
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"label", &d.Label},
		{"description", &d.Description},
		{"more-info-url", &d.MoreInfoURL},
		{"image", &d.Image},
	}
	for _, f := range fields {
		if err := resolve(f.name, f.value); err != nil {
			return nil, err
		}
	}
	for _, list := range [][]engine.JunctionDescriptor{d.InboundJunctions, d.OutboundJunctions} {
		for i := range list {
			if err := resolve("junction "+list[i].ID.String()+" label", &list[i].Label); err != nil {
				return nil, err
			}
			if err := resolve("junction "+list[i].ID.String()+" description", &list[i].Description); err != nil {
				return nil, err
			}
		}
	}
	for i := range d.DeploymentParameters {
		p := &d.DeploymentParameters[i]
		if err := resolve("parameter "+p.ID.String()+" label", &p.Label); err != nil {
			return nil, err
		}
		if err := resolve("parameter "+p.ID.String()+" description", &p.Description); err != nil {
			return nil, err
		}
	}
	for i := range d.Profiles {
		p := &d.Profiles[i]
		if err := resolve("profile "+p.ID.String()+" label", &p.Label); err != nil {
			return nil, err
		}
		if err := resolve("profile "+p.ID.String()+" description", &p.Description); err != nil {
			return nil, err
		}
	}

	return &d, nil
}

// ProcessorInstance binds the realization to a deployment identity.
func (r *Realization) ProcessorInstance(pipeline *ident.PipelineID, processor ident.ProcessorID, tc *target.Context) (engine.ProcessorInstance, error) {
	if tc == nil {
		return nil, engine.NewValidationError("target context is required", nil).
			WithSubject("processor", r.identifier)
	}
	if processor.IsZero() {
		return nil, engine.NewValidationError("processor id is required", nil).
			WithCode(engine.ErrCodeInvalidIdentifier).
			WithSubject("processor", r.identifier)
	}

	service, err := protocol.DefaultServiceName(pipeline, processor)
	if err != nil {
		return nil, err
	}

	return &Instance{
		realization: r,
		pipeline:    pipeline,
		processor:   processor,
		service:     service,
		target:      tc,
	}, nil
}
