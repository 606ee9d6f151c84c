// Package topic implements the topic resource type.
package topic

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/target"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Realization is one configured topic.
type Realization struct {
	descriptor engine.ResourceDescriptor
}

// NewRealization creates a realization from a topic configuration.
func NewRealization(cfg *config.TopicConfig) (*Realization, error) {
	id, err := ident.Parse[ident.Resource](cfg.ID)
	if err != nil {
		return nil, engine.NewConfigError("invalid topic configuration", err).
			WithCode(engine.ErrCodeInvalidConfig).
			WithSubjectString("file", cfg.Source)
	}

	return &Realization{
		descriptor: engine.ResourceDescriptor{
			Type:        engine.ResourceTypeTopic,
			ID:          id,
			Label:       cfg.Label,
			Description: cfg.Description,
			Address:     cfg.TopicAddress(),
			Readable:    cfg.IsReadable(),
			Writable:    cfg.IsWritable(),
			Partitions:  cfg.Partitions,
		},
	}, nil
}

// Identifier returns the global key of the topic.
func (r *Realization) Identifier() engine.ResourceIdentifier {
	return r.descriptor.Identifier()
}

// Label returns the topic label.
func (r *Realization) Label() string {
	return r.descriptor.Label
}

// Descriptor returns the topic description.
func (r *Realization) Descriptor() engine.ResourceDescriptor {
	return r.descriptor
}

// ResourceInstance binds the topic to tc.
func (r *Realization) ResourceInstance(tc *target.Context) (engine.ResourceInstance, error) {
	if tc == nil {
		return nil, engine.NewValidationError("target context is required", nil).
			WithSubject("resource", r.Identifier())
	}
	return &Instance{realization: r, target: tc}, nil
}

// Instance queries the platform for one topic.
type Instance struct {
	realization *Realization
	target      *target.Context
}

// Identifier returns the global key of the topic.
func (i *Instance) Identifier() engine.ResourceIdentifier {
	return i.realization.Identifier()
}

// Status returns the allocation status of the topic. A topic the platform
// does not know is a not-found error.
func (i *Instance) Status(ctx context.Context) (status *engine.ResourceStatus, err error) {
	descriptor := i.realization.descriptor
	ctx, done := telemetry.Observe(ctx, "resource.status",
		telemetry.AttrResourceID.String(descriptor.ID.String()),
		telemetry.AttrResourceType.String(string(descriptor.Type)),
		telemetry.AttrPlatform.String(i.target.Platform().Name),
		telemetry.AttrTenant.String(i.target.Tenant().Name.String()),
	)
	defer func() { done(err) }()

	logger := telemetry.FromContext(ctx).WithResource(descriptor.ID.String())

	c, err := i.target.Client(ctx)
	if err != nil {
		return nil, engine.NewRemoteError("failed to obtain platform client", err).
			WithCode(engine.ErrCodeAuthentication).
			WithOperation("resource.status").
			WithSubject("resource", i.Identifier())
	}

	topicStatus, err := c.TopicStatus(ctx, descriptor.Address)
	if errors.Is(err, client.ErrNotFound) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("topic '%s' does not exist on the platform", descriptor.Address), err).
			WithCode(engine.ErrCodeResourceNotFound).
			WithOperation("resource.status").
			WithSubject("resource", i.Identifier())
	}
	if err != nil {
		logger.WithError(err).Error("topic status request failed")
		return nil, engine.NewRemoteError("topic status request failed", err).
			WithCode(engine.ErrCodeClient).
			WithOperation("resource.status").
			WithSubject("resource", i.Identifier())
	}

	logger.Debugf("topic provisioned=%t partitions=%d", topicStatus.Provisioned, topicStatus.Partitions)
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetResourceUp(descriptor.ID.String(), string(descriptor.Type), topicStatus.Provisioned)
	}

	return &engine.ResourceStatus{
		Up:            topicStatus.Provisioned,
		Notifications: slices.Clone(topicStatus.Notifications),
	}, nil
}

// Registry holds every configured topic.
type Registry struct {
	realizations map[ident.ResourceID]*Realization
	ids          []ident.ResourceID
}

// NewRegistry creates a registry from topic configurations. Any invalid or
// duplicate entry fails the whole registry.
func NewRegistry(configs []*config.TopicConfig) (*Registry, error) {
	r := &Registry{realizations: make(map[ident.ResourceID]*Realization, len(configs))}

	for _, cfg := range configs {
		realization, err := NewRealization(cfg)
		if err != nil {
			return nil, err
		}
		id := realization.descriptor.ID
		if _, ok := r.realizations[id]; ok {
			return nil, engine.NewConfigError(fmt.Sprintf("topic '%s' is defined twice", id), nil).
				WithCode(engine.ErrCodeDuplicate).
				WithSubjectString("file", cfg.Source)
		}
		r.realizations[id] = realization
		r.ids = append(r.ids, id)
	}

	slices.SortFunc(r.ids, ident.ResourceID.Compare)
	return r, nil
}

// Realization returns the topic with id.
func (r *Registry) Realization(id ident.ResourceID) (*Realization, bool) {
	realization, ok := r.realizations[id]
	return realization, ok
}

// Realizations returns every topic, sorted by id.
func (r *Registry) Realizations() []*Realization {
	realizations := make([]*Realization, len(r.ids))
	for i, id := range r.ids {
		realizations[i] = r.realizations[id]
	}
	return realizations
}

// IDs returns every topic id, sorted.
func (r *Registry) IDs() []ident.ResourceID {
	return slices.Clone(r.ids)
}

// Len returns the number of topics.
func (r *Registry) Len() int {
	return len(r.ids)
}
