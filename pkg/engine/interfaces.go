package engine

import (
	"context"

	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
	"github.com/openfroyo/junction/pkg/target"
)

// ProcessorRealization is the immutable description of one processor kind
// and the factory for its instances. Implemented once per technology.
type ProcessorRealization interface {
	// Identifier returns the global key of the realization.
	Identifier() ProcessorIdentifier

	// Label returns a human readable label.
	Label() string

	// Descriptor returns the realization description with every template
	// resolved against mapping. Fails rather than returning partial data.
	Descriptor(mapping placeholder.Mapping) (*ProcessorDescriptor, error)

	// ProcessorInstance binds the realization to a deployment identity.
	ProcessorInstance(pipeline *ident.PipelineID, processor ident.ProcessorID, tc *target.Context) (ProcessorInstance, error)
}

// ProcessorInstance drives the deployment protocol for one deployment
// identity. Instances hold no deployment state; the platform is the sole
// source of truth.
type ProcessorInstance interface {
	// Identifier returns the identifier of the realization backing the instance.
	Identifier() ProcessorIdentifier

	// PipelineID returns the optional pipeline the instance belongs to.
	PipelineID() *ident.PipelineID

	// ProcessorID returns the processor id of the instance.
	ProcessorID() ident.ProcessorID

	// ServiceName returns the default service name for the instance.
	ServiceName() ident.ServiceName

	// CompatibleResources returns every known resource whose type matches the
	// junction's allowed types and that can be read (inbound) or written
	// (outbound). Unknown junctions yield an empty list.
	CompatibleResources(junction ident.JunctionID) []ResourceIdentifier

	// Deploy validates, resolves and submits req. Returns once the platform
	// has accepted the request.
	Deploy(ctx context.Context, req *DeploymentRequest) error

	// DeployDryRun validates and resolves req and returns what Deploy would submit.
	DeployDryRun(ctx context.Context, req *DeploymentRequest) (*DeploymentPreview, error)

	// Start starts a deployed service. Returns false if no such service exists.
	Start(ctx context.Context, service ident.ServiceName) (bool, error)

	// Stop stops a running service. Returns false if no such service exists.
	Stop(ctx context.Context, service ident.ServiceName) (bool, error)

	// Undeploy removes a service. Returns false if no such service exists.
	Undeploy(ctx context.Context, service ident.ServiceName) (bool, error)

	// Status returns the up/down flag of a service.
	Status(ctx context.Context, service ident.ServiceName) (*ProcessorStatus, error)
}

// ResourceRealization is the immutable description of one resource and the
// factory for its instances.
type ResourceRealization interface {
	// Identifier returns the global key of the resource.
	Identifier() ResourceIdentifier

	// Label returns a human readable label.
	Label() string

	// Descriptor returns the resource description.
	Descriptor() ResourceDescriptor

	// ResourceInstance binds the resource to a target context.
	ResourceInstance(tc *target.Context) (ResourceInstance, error)
}

// ResourceInstance queries the platform for one resource.
type ResourceInstance interface {
	// Identifier returns the global key of the resource.
	Identifier() ResourceIdentifier

	// Status returns the allocation status. A resource unknown to the
	// platform is a not-found error, never a default status.
	Status(ctx context.Context) (*ResourceStatus, error)
}

// DeploymentPolicy decides whether a resolved deployment may be submitted.
// A rejection is a validation class error carrying ErrCodePolicyViolation.
type DeploymentPolicy interface {
	Admit(ctx context.Context, review *DeploymentReview) error
}
