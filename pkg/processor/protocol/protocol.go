// Package protocol holds the deployment validation shared by every processor
// technology: junction bindings, cardinality, parameters and profile
// selection. Everything here runs before any call to the platform.
package protocol

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
)

// Resources resolves resource identifiers. Implemented by the resource registry.
type Resources interface {
	ResourceByIdentifier(id engine.ResourceIdentifier) (engine.ResourceRealization, error)
	ResourceRealizationsByType(resourceType engine.ResourceType) []engine.ResourceRealization
}

// Binding is a validated junction binding.
type Binding struct {
	Junction  engine.JunctionDescriptor
	Resources []engine.ResourceDescriptor
}

// Addresses returns the addresses of the bound resources, in binding order.
func (b Binding) Addresses() []string {
	addresses := make([]string, len(b.Resources))
	for i, r := range b.Resources {
		addresses[i] = r.Address
	}
	return addresses
}

// Plan is a validated deployment request.
type Plan struct {
	ServiceName ident.ServiceName

	// Bindings covers every declared junction, inbound first, each direction
	// sorted by junction id. Unbound junctions have no resources.
	Bindings []Binding

	// Parameters holds the supplied values with defaults filled in.
	Parameters map[ident.ParameterID]string

	Profile engine.ProfileDescriptor
}

// Addresses returns the distinct addresses of every bound resource, sorted.
func (p *Plan) Addresses() []string {
	var addresses []string
	for _, b := range p.Bindings {
		for _, a := range b.Addresses() {
			if !slices.Contains(addresses, a) {
				addresses = append(addresses, a)
			}
		}
	}
	slices.Sort(addresses)
	return addresses
}

// Compatible reports whether resource may be bound to junction: its type is
// allowed, and it is readable for an inbound or writable for an outbound junction.
func Compatible(junction engine.JunctionDescriptor, resource engine.ResourceDescriptor) bool {
	if !junction.Accepts(resource.Type) {
		return false
	}
	if junction.Direction == engine.JunctionInbound {
		return resource.Readable
	}
	return resource.Writable
}

// FindJunction returns the junction with id in either direction.
func FindJunction(descriptor *engine.ProcessorDescriptor, id ident.JunctionID) (engine.JunctionDescriptor, bool) {
	for _, j := range slices.Concat(descriptor.InboundJunctions, descriptor.OutboundJunctions) {
		if j.ID == id {
			return j, true
		}
	}
	return engine.JunctionDescriptor{}, false
}

// CompatibleResources returns every resource that may be bound to junction,
// sorted. An unknown junction yields an empty list.
func CompatibleResources(descriptor *engine.ProcessorDescriptor, junction ident.JunctionID, resources Resources) []engine.ResourceIdentifier {
	j, ok := FindJunction(descriptor, junction)
	if !ok {
		return []engine.ResourceIdentifier{}
	}

	ids := []engine.ResourceIdentifier{}
	for _, resourceType := range j.AllowedResourceTypes {
		for _, realization := range resources.ResourceRealizationsByType(resourceType) {
			if Compatible(j, realization.Descriptor()) {
				ids = append(ids, realization.Identifier())
			}
		}
	}
	slices.SortFunc(ids, engine.ResourceIdentifier.Compare)
	return slices.CompactFunc(ids, func(a, b engine.ResourceIdentifier) bool { return a == b })
}

// Validate checks req against descriptor and returns the validated plan.
// service is the name to deploy under.
func Validate(descriptor *engine.ProcessorDescriptor, req *engine.DeploymentRequest, service ident.ServiceName, resources Resources) (*Plan, error) {
	inbound, err := bind(descriptor.InboundJunctions, engine.JunctionInbound, req.InboundJunctions, resources)
	if err != nil {
		return nil, err
	}
	outbound, err := bind(descriptor.OutboundJunctions, engine.JunctionOutbound, req.OutboundJunctions, resources)
	if err != nil {
		return nil, err
	}

	parameters, err := ValidateParameters(descriptor.DeploymentParameters, req.Parameters)
	if err != nil {
		return nil, err
	}

	profile, err := SelectProfile(descriptor.Profiles, req.Profile)
	if err != nil {
		return nil, err
	}

	return &Plan{
		ServiceName: service,
		Bindings:    slices.Concat(inbound, outbound),
		Parameters:  parameters,
		Profile:     profile,
	}, nil
}

// bind validates the bindings of one direction against the declared junctions.
func bind(declared []engine.JunctionDescriptor, direction engine.JunctionDirection, requested map[ident.JunctionID][]engine.ResourceIdentifier, resources Resources) ([]Binding, error) {
	byID := make(map[ident.JunctionID]engine.JunctionDescriptor, len(declared))
	for _, j := range declared {
		byID[j.ID] = j
	}

	// Deterministic error reporting
	for _, id := range slices.SortedFunc(maps.Keys(requested), ident.JunctionID.Compare) {
		if _, ok := byID[id]; !ok {
			return nil, engine.NewValidationError(fmt.Sprintf("%s junction '%s' is not declared", direction, id), nil).
				WithCode(engine.ErrCodeUnknownJunction).
				WithSubject("junction", id)
		}
	}

	bindings := make([]Binding, 0, len(declared))
	for _, j := range declared {
		ids := requested[j.ID]
		binding := Binding{Junction: j}

		seen := make(map[engine.ResourceIdentifier]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return nil, engine.NewValidationError(fmt.Sprintf("resource '%s' is bound twice", id), nil).
					WithCode(engine.ErrCodeIncompatible).
					WithSubject("junction", j.ID)
			}
			seen[id] = true

			if !j.Accepts(id.Type) {
				return nil, engine.NewValidationError(
					fmt.Sprintf("junction '%s' does not accept resources of type %s", j.ID, id.Type), nil).
					WithCode(engine.ErrCodeIncompatible).
					WithSubject("junction", j.ID).
					WithSubject("resource", id)
			}

			realization, err := resources.ResourceByIdentifier(id)
			if err != nil {
				return nil, err
			}
			resource := realization.Descriptor()
			if !Compatible(j, resource) {
				return nil, engine.NewValidationError(
					fmt.Sprintf("resource '%s' cannot be bound to %s junction '%s'", id, direction, j.ID), nil).
					WithCode(engine.ErrCodeIncompatible).
					WithSubject("junction", j.ID).
					WithSubject("resource", id)
			}
			binding.Resources = append(binding.Resources, resource)
		}

		if err := checkCardinality(j, len(binding.Resources)); err != nil {
			return nil, err
		}
		bindings = append(bindings, binding)
	}

	return bindings, nil
}

func checkCardinality(j engine.JunctionDescriptor, count int) error {
	switch {
	case count < j.MinimumResources:
		return engine.NewValidationError(
			fmt.Sprintf("junction '%s' requires at least %d resource(s), got %d", j.ID, j.MinimumResources, count), nil).
			WithCode(engine.ErrCodeCardinality).
			WithSubject("junction", j.ID)
	case j.MaximumResources > 0 && count > j.MaximumResources:
		return engine.NewValidationError(
			fmt.Sprintf("junction '%s' accepts at most %d resource(s), got %d", j.ID, j.MaximumResources, count), nil).
			WithCode(engine.ErrCodeCardinality).
			WithSubject("junction", j.ID)
	}
	return nil
}

// ValidateParameters checks supplied values against the declared parameters
// and fills in defaults. Optional parameters without a default and without
// a value are absent from the result.
func ValidateParameters(declared []engine.DeploymentParameterDescriptor, supplied map[ident.ParameterID]string) (map[ident.ParameterID]string, error) {
	byID := make(map[ident.ParameterID]engine.DeploymentParameterDescriptor, len(declared))
	for _, p := range declared {
		byID[p.ID] = p
	}

	for _, id := range slices.SortedFunc(maps.Keys(supplied), ident.ParameterID.Compare) {
		if _, ok := byID[id]; !ok {
			return nil, invalidParameter(id, fmt.Sprintf("parameter '%s' is not declared", id))
		}
	}

	values := make(map[ident.ParameterID]string, len(declared))
	for _, p := range declared {
		value, ok := supplied[p.ID]
		if !ok {
			switch {
			case p.Default != nil:
				value = *p.Default
			case p.Optional:
				continue
			default:
				return nil, invalidParameter(p.ID, fmt.Sprintf("parameter '%s' is required", p.ID))
			}
		}

		switch p.Kind {
		case engine.ParameterBoolean:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, invalidParameter(p.ID, fmt.Sprintf("parameter '%s' must be true or false, got '%s'", p.ID, value))
			}
			value = strconv.FormatBool(b)
		case engine.ParameterSelection:
			if !slices.Contains(p.Options, value) {
				return nil, invalidParameter(p.ID, fmt.Sprintf("parameter '%s' must be one of %s, got '%s'",
					p.ID, strings.Join(p.Options, ", "), value))
			}
		}
		values[p.ID] = value
	}

	return values, nil
}

func invalidParameter(id ident.ParameterID, message string) error {
	return engine.NewValidationError(message, nil).
		WithCode(engine.ErrCodeInvalidParameter).
		WithSubject("parameter", id)
}

// SelectProfile returns the requested profile. Without a request the only
// profile is selected; with several profiles one must be requested.
func SelectProfile(profiles []engine.ProfileDescriptor, requested *ident.ProfileID) (engine.ProfileDescriptor, error) {
	if requested == nil {
		if len(profiles) == 1 {
			return profiles[0], nil
		}
		ids := make([]string, len(profiles))
		for i, p := range profiles {
			ids[i] = p.ID.String()
		}
		return engine.ProfileDescriptor{}, engine.NewValidationError(
			fmt.Sprintf("a profile is required, choose one of %s", strings.Join(ids, ", ")), nil).
			WithCode(engine.ErrCodeProfileRequired)
	}

	for _, p := range profiles {
		if p.ID == *requested {
			return p, nil
		}
	}
	return engine.ProfileDescriptor{}, engine.NewNotFoundError(fmt.Sprintf("profile '%s' does not exist", requested), nil).
		WithCode(engine.ErrCodeProfileNotFound).
		WithSubject("profile", requested)
}

// DefaultServiceName returns "<pipeline>-<processor>", or "<processor>"
// without a pipeline.
func DefaultServiceName(pipeline *ident.PipelineID, processor ident.ProcessorID) (ident.ServiceName, error) {
	name := processor.String()
	if pipeline != nil {
		name = pipeline.String() + "-" + name
	}
	service, err := ident.Parse[ident.Service](name)
	if err != nil {
		return ident.ServiceName{}, engine.NewValidationError("invalid service name", err).
			WithCode(engine.ErrCodeInvalidIdentifier)
	}
	return service, nil
}
