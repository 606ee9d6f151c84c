package ident

import "regexp"

// Kind markers. Each one binds an identifier kind to its entry in specs.
type (
	Junction             struct{}
	ProcessorRealization struct{}
	Processor            struct{}
	Parameter            struct{}
	Profile              struct{}
	Resource             struct{}
	Pipeline             struct{}
	Task                 struct{}
	Service              struct{}
	Tenant               struct{}
)

// Identifier types used throughout the module.
type (
	JunctionID             = ID[Junction]
	ProcessorRealizationID = ID[ProcessorRealization]
	ProcessorID            = ID[Processor]
	ParameterID            = ID[Parameter]
	ProfileID              = ID[Profile]
	ResourceID             = ID[Resource]
	PipelineID             = ID[Pipeline]
	TaskID                 = ID[Task]
	ServiceName            = ID[Service]
	TenantName             = ID[Tenant]
)

var specs = map[string]Spec{
	"junction": {
		Tag:         "junction",
		Description: "junction identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9_-]{0,49}$`),
		Valid:       "inbound-junction",
		Invalid:     "Inbound junction",
	},
	"processor-realization": {
		Tag:         "processor-realization",
		Description: "processor realization identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9-]{0,49}$`),
		Valid:       "consent-filter",
		Invalid:     "consent_filter",
	},
	"processor": {
		Tag:         "processor",
		Description: "processor identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9]{0,19}$`),
		Valid:       "filter1",
		Invalid:     "filter-1",
	},
	"parameter": {
		Tag:         "parameter",
		Description: "parameter identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9_-]{0,29}$`),
		Valid:       "multiplier",
		Invalid:     "Multiplier",
	},
	"profile": {
		Tag:         "profile",
		Description: "profile identifier",
		Pattern:     regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,19}$`),
		Valid:       "minimal",
		Invalid:     "-minimal",
	},
	"resource": {
		Tag:         "resource",
		Description: "resource identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,99}$`),
		Valid:       "stream.consent.greenbox",
		Invalid:     "stream/consent",
	},
	"pipeline": {
		Tag:         "pipeline",
		Description: "pipeline identifier",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9]{0,19}$`),
		Valid:       "pipeline1",
		Invalid:     "pipeline-1",
	},
	"task": {
		Tag:         "task",
		Description: "task identifier",
		Pattern:     regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`),
		Valid:       "8f4b5747-lnmj4-00000000",
		Invalid:     "Task!",
	},
	"service": {
		Tag:         "service",
		Description: "service name",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9-]{0,40}$`),
		Valid:       "pipeline1-filter1",
		Invalid:     "pipeline1_filter1",
	},
	"tenant": {
		Tag:         "tenant",
		Description: "tenant name",
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9-]{0,39}$`),
		Valid:       "greenbox-dev",
		Invalid:     "Greenbox",
	},
}

func (Junction) Spec() Spec             { return specs["junction"] }
func (ProcessorRealization) Spec() Spec { return specs["processor-realization"] }
func (Processor) Spec() Spec            { return specs["processor"] }
func (Parameter) Spec() Spec            { return specs["parameter"] }
func (Profile) Spec() Spec              { return specs["profile"] }
func (Resource) Spec() Spec             { return specs["resource"] }
func (Pipeline) Spec() Spec             { return specs["pipeline"] }
func (Task) Spec() Spec                 { return specs["task"] }
func (Service) Spec() Spec              { return specs["service"] }
func (Tenant) Spec() Spec               { return specs["tenant"] }

// Specs returns the specification of every identifier kind, keyed by tag.
func Specs() map[string]Spec {
	out := make(map[string]Spec, len(specs))
	for tag, spec := range specs {
		out[tag] = spec
	}
	return out
}
