// Package resource provides the resource registry, which dispatches every
// query to the sub-registry of the requested resource type.
package resource

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/resource/topic"
	"github.com/openfroyo/junction/pkg/target"
)

// DefaultStatusConcurrency bounds the status queries of
// ResourceDescriptorsWithStatus.
const DefaultStatusConcurrency = 8

// Registry holds every known resource. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	topics *topic.Registry

	// StatusConcurrency bounds concurrent status queries.
	StatusConcurrency int
}

// NewRegistry creates a registry from its sub-registries.
func NewRegistry(topics *topic.Registry) *Registry {
	return &Registry{
		topics:            topics,
		StatusConcurrency: DefaultStatusConcurrency,
	}
}

// Load builds a registry from the resource configuration files in dir.
func Load(loader *config.Loader, dir string) (*Registry, error) {
	topicConfigs, err := loader.LoadTopics(dir)
	if err != nil {
		return nil, err
	}
	topics, err := topic.NewRegistry(topicConfigs)
	if err != nil {
		return nil, err
	}
	return NewRegistry(topics), nil
}

// Resource returns the realization of resource id of type resourceType.
func (r *Registry) Resource(resourceType engine.ResourceType, id ident.ResourceID) (engine.ResourceRealization, error) {
	switch resourceType {
	case engine.ResourceTypeTopic:
		if realization, ok := r.topics.Realization(id); ok {
			return realization, nil
		}
	default:
		return nil, unknownType(resourceType)
	}
	return nil, engine.NewNotFoundError(fmt.Sprintf("resource '%s' does not exist", id), nil).
		WithCode(engine.ErrCodeResourceNotFound).
		WithSubject("resource", engine.ResourceIdentifier{Type: resourceType, ID: id})
}

// ResourceByIdentifier returns the realization of id.
func (r *Registry) ResourceByIdentifier(id engine.ResourceIdentifier) (engine.ResourceRealization, error) {
	return r.Resource(id.Type, id.ID)
}

// ResourceDescriptor returns the descriptor of resource id of type resourceType.
func (r *Registry) ResourceDescriptor(resourceType engine.ResourceType, id ident.ResourceID) (*engine.ResourceDescriptor, error) {
	realization, err := r.Resource(resourceType, id)
	if err != nil {
		return nil, err
	}
	descriptor := realization.Descriptor()
	return &descriptor, nil
}

// ResourceRealizationsByType returns every realization of resourceType,
// sorted by id.
func (r *Registry) ResourceRealizationsByType(resourceType engine.ResourceType) []engine.ResourceRealization {
	switch resourceType {
	case engine.ResourceTypeTopic:
		topics := r.topics.Realizations()
		realizations := make([]engine.ResourceRealization, len(topics))
		for i, t := range topics {
			realizations[i] = t
		}
		return realizations
	default:
		return nil
	}
}

// ResourceDescriptors returns the descriptors of every resource of
// resourceType, sorted by id.
func (r *Registry) ResourceDescriptors(resourceType engine.ResourceType) []engine.ResourceDescriptor {
	realizations := r.ResourceRealizationsByType(resourceType)
	descriptors := make([]engine.ResourceDescriptor, len(realizations))
	for i, realization := range realizations {
		descriptors[i] = realization.Descriptor()
	}
	return descriptors
}

// ResourceIdentifiers returns the identifiers of every known resource,
// sorted by type, then id.
func (r *Registry) ResourceIdentifiers() []engine.ResourceIdentifier {
	var ids []engine.ResourceIdentifier
	for _, resourceType := range engine.ResourceTypes() {
		for _, realization := range r.ResourceRealizationsByType(resourceType) {
			ids = append(ids, realization.Identifier())
		}
	}
	slices.SortFunc(ids, engine.ResourceIdentifier.Compare)
	return ids
}

// ResourceIdentifiersByType returns the identifiers of every resource of
// resourceType, sorted by id.
func (r *Registry) ResourceIdentifiersByType(resourceType engine.ResourceType) []engine.ResourceIdentifier {
	realizations := r.ResourceRealizationsByType(resourceType)
	ids := make([]engine.ResourceIdentifier, len(realizations))
	for i, realization := range realizations {
		ids[i] = realization.Identifier()
	}
	return ids
}

// ResourceStatus queries the platform for the status of one resource.
func (r *Registry) ResourceStatus(ctx context.Context, id engine.ResourceIdentifier, tc *target.Context) (*engine.ResourceStatus, error) {
	realization, err := r.ResourceByIdentifier(id)
	if err != nil {
		return nil, err
	}
	instance, err := realization.ResourceInstance(tc)
	if err != nil {
		return nil, err
	}
	return instance.Status(ctx)
}

// ResourceDescriptorsWithStatus queries the status of every resource of
// resourceType concurrently and returns the descriptors with their status,
// sorted by id. All queries have finished when it returns. The first failure
// cancels the remaining queries and is returned.
func (r *Registry) ResourceDescriptorsWithStatus(ctx context.Context, resourceType engine.ResourceType, tc *target.Context) ([]engine.ResourceDescriptorWithStatus, error) {
	realizations := r.ResourceRealizationsByType(resourceType)
	results := make([]engine.ResourceDescriptorWithStatus, len(realizations))

	g, ctx := errgroup.WithContext(ctx)
	if r.StatusConcurrency > 0 {
		g.SetLimit(r.StatusConcurrency)
	}

	for i, realization := range realizations {
		g.Go(func() error {
			instance, err := realization.ResourceInstance(tc)
			if err != nil {
				return err
			}
			status, err := instance.Status(ctx)
			if err != nil {
				return err
			}
			results[i] = engine.ResourceDescriptorWithStatus{
				Descriptor: realization.Descriptor(),
				Status:     *status,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of resources of resourceType.
func (r *Registry) Count(resourceType engine.ResourceType) int {
	switch resourceType {
	case engine.ResourceTypeTopic:
		return r.topics.Len()
	default:
		return 0
	}
}

func unknownType(resourceType engine.ResourceType) error {
	return engine.NewValidationError(fmt.Sprintf("'%s' is not a valid resource type", resourceType), nil).
		WithCode(engine.ErrCodeInvalidIdentifier)
}
