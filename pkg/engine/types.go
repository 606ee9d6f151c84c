package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/openfroyo/junction/pkg/ident"
)

// ProcessorTechnology is the closed set of processor technologies.
type ProcessorTechnology string

const (
	// ProcessorTechnologyService deploys processors as long-running platform services.
	ProcessorTechnologyService ProcessorTechnology = "service"
)

// ProcessorTechnologies returns every supported processor technology.
func ProcessorTechnologies() []ProcessorTechnology {
	return []ProcessorTechnology{ProcessorTechnologyService}
}

// ParseProcessorTechnology validates a technology tag.
func ParseProcessorTechnology(s string) (ProcessorTechnology, error) {
	t := ProcessorTechnology(s)
	if !slices.Contains(ProcessorTechnologies(), t) {
		return "", NewValidationError(fmt.Sprintf("'%s' is not a valid processor technology", s), nil).
			WithCode(ErrCodeInvalidIdentifier)
	}
	return t, nil
}

// ResourceType is the closed set of bindable resource types.
type ResourceType string

const (
	// ResourceTypeTopic is a platform-managed message topic.
	ResourceTypeTopic ResourceType = "topic"
)

// ResourceTypes returns every supported resource type.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceTypeTopic}
}

// ParseResourceType validates a resource type tag.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(s)
	if !slices.Contains(ResourceTypes(), t) {
		return "", NewValidationError(fmt.Sprintf("'%s' is not a valid resource type", s), nil).
			WithCode(ErrCodeInvalidIdentifier)
	}
	return t, nil
}

// ProcessorIdentifier is the global key of a processor realization.
type ProcessorIdentifier struct {
	Technology ProcessorTechnology          `json:"technology" yaml:"technology"`
	ID         ident.ProcessorRealizationID `json:"id" yaml:"id"`
}

// String returns "technology:id".
func (p ProcessorIdentifier) String() string {
	return string(p.Technology) + ":" + p.ID.String()
}

// Compare orders processor identifiers by technology, then id.
func (p ProcessorIdentifier) Compare(other ProcessorIdentifier) int {
	if c := strings.Compare(string(p.Technology), string(other.Technology)); c != 0 {
		return c
	}
	return p.ID.Compare(other.ID)
}

// ParseProcessorIdentifier parses "technology:id", or a bare id with the
// service technology.
func ParseProcessorIdentifier(s string) (ProcessorIdentifier, error) {
	tech, raw, found := strings.Cut(s, ":")
	if !found {
		tech, raw = string(ProcessorTechnologyService), s
	}
	technology, err := ParseProcessorTechnology(tech)
	if err != nil {
		return ProcessorIdentifier{}, err
	}
	id, err := ident.Parse[ident.ProcessorRealization](raw)
	if err != nil {
		return ProcessorIdentifier{}, NewValidationError("invalid processor identifier", err).WithCode(ErrCodeInvalidIdentifier)
	}
	return ProcessorIdentifier{Technology: technology, ID: id}, nil
}

// ResourceIdentifier is the global key of a resource.
type ResourceIdentifier struct {
	Type ResourceType     `json:"type" yaml:"type"`
	ID   ident.ResourceID `json:"id" yaml:"id"`
}

// String returns "type:id".
func (r ResourceIdentifier) String() string {
	return string(r.Type) + ":" + r.ID.String()
}

// Compare orders resource identifiers by type, then id.
func (r ResourceIdentifier) Compare(other ResourceIdentifier) int {
	if c := strings.Compare(string(r.Type), string(other.Type)); c != 0 {
		return c
	}
	return r.ID.Compare(other.ID)
}

// ParseResourceIdentifier parses "type:id", or a bare id with the topic type.
func ParseResourceIdentifier(s string) (ResourceIdentifier, error) {
	typ, raw, found := strings.Cut(s, ":")
	if !found {
		typ, raw = string(ResourceTypeTopic), s
	}
	resourceType, err := ParseResourceType(typ)
	if err != nil {
		return ResourceIdentifier{}, err
	}
	id, err := ident.Parse[ident.Resource](raw)
	if err != nil {
		return ResourceIdentifier{}, NewValidationError("invalid resource identifier", err).WithCode(ErrCodeInvalidIdentifier)
	}
	return ResourceIdentifier{Type: resourceType, ID: id}, nil
}

// JunctionDirection is fixed at configuration time.
type JunctionDirection string

const (
	JunctionInbound  JunctionDirection = "inbound"
	JunctionOutbound JunctionDirection = "outbound"
)

// JunctionDescriptor declares one connection point of a processor.
type JunctionDescriptor struct {
	ID                   ident.JunctionID  `json:"id" yaml:"id"`
	Direction            JunctionDirection `json:"direction" yaml:"direction"`
	Label                string            `json:"label" yaml:"label"`
	Description          string            `json:"description" yaml:"description"`
	AllowedResourceTypes []ResourceType    `json:"allowed-resource-types" yaml:"allowed-resource-types"`
	MinimumResources     int               `json:"minimum-resources" yaml:"minimum-resources"`
	MaximumResources     int               `json:"maximum-resources" yaml:"maximum-resources"`
	EnvironmentVariable  string            `json:"environment-variable,omitempty" yaml:"environment-variable,omitempty"`
}

// Accepts reports whether a resource of type t may be bound to the junction.
func (j JunctionDescriptor) Accepts(t ResourceType) bool {
	return slices.Contains(j.AllowedResourceTypes, t)
}

// ParameterKind describes how a deployment parameter value is entered.
type ParameterKind string

const (
	ParameterFreeText  ParameterKind = "free-text"
	ParameterBoolean   ParameterKind = "boolean"
	ParameterSelection ParameterKind = "selection"
)

// DeploymentParameterDescriptor declares one deployment parameter.
type DeploymentParameterDescriptor struct {
	ID          ident.ParameterID `json:"id" yaml:"id"`
	Kind        ParameterKind     `json:"kind" yaml:"kind"`
	Label       string            `json:"label" yaml:"label"`
	Description string            `json:"description" yaml:"description"`
	Optional    bool              `json:"optional" yaml:"optional"`
	Default     *string           `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []string          `json:"options,omitempty" yaml:"options,omitempty"`
}

// ProfileDescriptor describes one deployment sizing preset.
type ProfileDescriptor struct {
	ID          ident.ProfileID `json:"id" yaml:"id"`
	Label       string          `json:"label" yaml:"label"`
	Description string          `json:"description" yaml:"description"`
	Instances   uint64          `json:"instances" yaml:"instances"`
	CPUs        float64         `json:"cpus" yaml:"cpus"`
	Mem         uint64          `json:"mem" yaml:"mem"`
}

// ProcessorDescriptor is the resolved, read-only description of a processor
// realization. Lists are sorted by id.
type ProcessorDescriptor struct {
	Technology           ProcessorTechnology             `json:"technology" yaml:"technology"`
	ID                   ident.ProcessorRealizationID    `json:"id" yaml:"id"`
	Label                string                          `json:"label" yaml:"label"`
	Description          string                          `json:"description" yaml:"description"`
	Version              string                          `json:"version,omitempty" yaml:"version,omitempty"`
	MoreInfoURL          string                          `json:"more-info-url,omitempty" yaml:"more-info-url,omitempty"`
	Image                string                          `json:"image,omitempty" yaml:"image,omitempty"`
	Metadata             map[string]string               `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	InboundJunctions     []JunctionDescriptor            `json:"inbound-junctions" yaml:"inbound-junctions"`
	OutboundJunctions    []JunctionDescriptor            `json:"outbound-junctions" yaml:"outbound-junctions"`
	DeploymentParameters []DeploymentParameterDescriptor `json:"deployment-parameters" yaml:"deployment-parameters"`
	Profiles             []ProfileDescriptor             `json:"profiles" yaml:"profiles"`
}

// ResourceDescriptor is the read-only description of a resource.
type ResourceDescriptor struct {
	Type        ResourceType     `json:"type" yaml:"type"`
	ID          ident.ResourceID `json:"id" yaml:"id"`
	Label       string           `json:"label" yaml:"label"`
	Description string           `json:"description" yaml:"description"`
	// Address is what a bound processor uses to reach the resource, e.g. the
	// full topic name.
	Address    string `json:"address" yaml:"address"`
	Readable   bool   `json:"readable" yaml:"readable"`
	Writable   bool   `json:"writable" yaml:"writable"`
	Partitions int    `json:"partitions,omitempty" yaml:"partitions,omitempty"`
}

// Identifier returns the resource identifier of the descriptor.
func (d ResourceDescriptor) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: d.Type, ID: d.ID}
}

// ResourceStatus is the allocation status reported by the platform.
type ResourceStatus struct {
	Up            bool     `json:"up" yaml:"up"`
	Notifications []string `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// ResourceDescriptorWithStatus pairs a descriptor with its current status.
type ResourceDescriptorWithStatus struct {
	Descriptor ResourceDescriptor `json:"descriptor" yaml:"descriptor"`
	Status     ResourceStatus     `json:"status" yaml:"status"`
}

// ProcessorStatus is the up/down flag reported by the platform.
type ProcessorStatus struct {
	Up bool `json:"up" yaml:"up"`
}

// DeploymentRequest is assembled per deploy call and never persisted.
type DeploymentRequest struct {
	ServiceName       ident.ServiceName                         `json:"service-name" yaml:"service-name"`
	InboundJunctions  map[ident.JunctionID][]ResourceIdentifier `json:"inbound-junctions" yaml:"inbound-junctions"`
	OutboundJunctions map[ident.JunctionID][]ResourceIdentifier `json:"outbound-junctions" yaml:"outbound-junctions"`
	Parameters        map[ident.ParameterID]string              `json:"parameters" yaml:"parameters"`
	Profile           *ident.ProfileID                          `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// DeploymentPreview is the fully resolved deployment a dry run would submit.
type DeploymentPreview struct {
	ServiceName   ident.ServiceName   `json:"service-name" yaml:"service-name"`
	Technology    ProcessorTechnology `json:"technology" yaml:"technology"`
	Profile       ident.ProfileID     `json:"profile" yaml:"profile"`
	Configuration any                 `json:"configuration" yaml:"configuration"`
}

// DeploymentReview is the resolved deployment a DeploymentPolicy decides on.
type DeploymentReview struct {
	Platform   string            `json:"platform" yaml:"platform"`
	Tenant     ident.TenantName  `json:"tenant" yaml:"tenant"`
	Processor  string            `json:"processor" yaml:"processor"`
	Instance   ident.ProcessorID `json:"instance" yaml:"instance"`
	Pipeline   *ident.PipelineID `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Deployment DeploymentPreview `json:"deployment" yaml:"deployment"`
}
