// Package processor provides the processor registry, which dispatches every
// query to the realizations of the requested processor technology.
package processor

import (
	"fmt"
	"slices"

	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
	"github.com/openfroyo/junction/pkg/processor/protocol"
	"github.com/openfroyo/junction/pkg/processor/service"
)

// Registry holds every known processor realization. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	services map[ident.ProcessorRealizationID]*service.Realization
	ids      []engine.ProcessorIdentifier
}

// NewRegistry creates realizations from processor configurations. Any
// invalid or duplicate configuration fails the whole registry. opts apply to
// every service realization.
func NewRegistry(configs []*config.ProcessorConfig, resources protocol.Resources, opts ...service.Option) (*Registry, error) {
	r := &Registry{services: make(map[ident.ProcessorRealizationID]*service.Realization)}

	for _, cfg := range configs {
		technology, err := engine.ParseProcessorTechnology(cfg.Technology)
		if err != nil {
			return nil, engine.NewConfigError("invalid processor configuration", err).
				WithCode(engine.ErrCodeInvalidConfig).
				WithSubjectString("file", cfg.Source)
		}

		switch technology {
		case engine.ProcessorTechnologyService:
			realization, err := service.NewRealization(cfg, resources, opts...)
			if err != nil {
				return nil, err
			}
			id := realization.Identifier()
			if _, ok := r.services[id.ID]; ok {
				return nil, engine.NewConfigError(fmt.Sprintf("processor '%s' is defined twice", id), nil).
					WithCode(engine.ErrCodeDuplicate).
					WithSubjectString("file", cfg.Source)
			}
			r.services[id.ID] = realization
			r.ids = append(r.ids, id)
		}
	}

	slices.SortFunc(r.ids, engine.ProcessorIdentifier.Compare)
	return r, nil
}

// Load builds a registry from the processor configuration files in dir.
func Load(loader *config.Loader, dir string, resources protocol.Resources, opts ...service.Option) (*Registry, error) {
	configs, err := loader.LoadProcessors(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(configs, resources, opts...)
}

// Processor returns the realization with id.
func (r *Registry) Processor(id engine.ProcessorIdentifier) (engine.ProcessorRealization, error) {
	switch id.Technology {
	case engine.ProcessorTechnologyService:
		if realization, ok := r.services[id.ID]; ok {
			return realization, nil
		}
	default:
		return nil, engine.NewValidationError(fmt.Sprintf("'%s' is not a valid processor technology", id.Technology), nil).
			WithCode(engine.ErrCodeInvalidIdentifier)
	}
	return nil, notFound(id.String())
}

// ProcessorByRealizationID returns the realization with id in any technology.
func (r *Registry) ProcessorByRealizationID(id ident.ProcessorRealizationID) (engine.ProcessorRealization, error) {
	if realization, ok := r.services[id]; ok {
		return realization, nil
	}
	return nil, notFound(id.String())
}

// ProcessorIdentifiers returns every realization identifier, sorted.
func (r *Registry) ProcessorIdentifiers() []engine.ProcessorIdentifier {
	return slices.Clone(r.ids)
}

// ProcessorRealizations returns every realization, sorted by identifier.
func (r *Registry) ProcessorRealizations() []engine.ProcessorRealization {
	realizations := make([]engine.ProcessorRealization, 0, len(r.ids))
	for _, id := range r.ids {
		realization, _ := r.Processor(id)
		realizations = append(realizations, realization)
	}
	return realizations
}

// ProcessorDescriptors resolves the descriptor of every realization against
// mapping. The first unresolvable descriptor fails the whole listing.
func (r *Registry) ProcessorDescriptors(mapping placeholder.Mapping) ([]*engine.ProcessorDescriptor, error) {
	descriptors := make([]*engine.ProcessorDescriptor, 0, len(r.ids))
	for _, realization := range r.ProcessorRealizations() {
		d, err := realization.Descriptor(mapping)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// Count returns the number of realizations of technology.
func (r *Registry) Count(technology engine.ProcessorTechnology) int {
	switch technology {
	case engine.ProcessorTechnologyService:
		return len(r.services)
	default:
		return 0
	}
}

func notFound(id string) error {
	return engine.NewNotFoundError(fmt.Sprintf("processor '%s' does not exist", id), nil).
		WithCode(engine.ErrCodeRealizationNotFound).
		WithSubjectString("processor", id)
}
