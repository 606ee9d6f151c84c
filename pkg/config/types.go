package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProcessorConfig is the static configuration of one processor realization,
// as read from a processor configuration file.
type ProcessorConfig struct {
	// ID is the processor realization id (e.g. "greenbox-filter").
	ID string `yaml:"id" validate:"required"`

	// Technology selects the processor technology (e.g. "service").
	Technology string `yaml:"technology" validate:"required,oneof=service"`

	// Label is a short human readable name. May contain placeholders.
	Label string `yaml:"label" validate:"required"`

	// Description may contain placeholders.
	Description string `yaml:"description"`

	// Version of the processor.
	Version string `yaml:"version,omitempty"`

	// MoreInfoURL points at documentation. May contain placeholders.
	MoreInfoURL string `yaml:"more-info-url,omitempty"`

	// Metadata are free-form key-value pairs shown with the descriptor.
	Metadata map[string]string `yaml:"metadata,omitempty"`

	// InboundJunctions are the connection points the processor reads from.
	InboundJunctions []JunctionConfig `yaml:"inbound-junctions,omitempty" validate:"dive"`

	// OutboundJunctions are the connection points the processor writes to.
	OutboundJunctions []JunctionConfig `yaml:"outbound-junctions,omitempty" validate:"dive"`

	// DeploymentParameters are the values a caller supplies at deploy time.
	DeploymentParameters []ParameterConfig `yaml:"deployment-parameters,omitempty" validate:"dive"`

	// Profiles are the sizing presets offered by the processor.
	Profiles []ProfileConfig `yaml:"profiles" validate:"required,min=1,dive"`

	// Service holds the settings of the service technology.
	Service *ServiceConfig `yaml:"service,omitempty" validate:"required_if=Technology service,omitempty"`

	// Source is the file the configuration was read from.
	Source string `yaml:"-"`
}

// JunctionConfig declares one junction.
type JunctionConfig struct {
	ID          string `yaml:"id" validate:"required"`
	Label       string `yaml:"label" validate:"required"`
	Description string `yaml:"description,omitempty"`

	// AllowedResourceTypes lists the resource types that can be bound.
	AllowedResourceTypes []string `yaml:"allowed-resource-types" validate:"required,min=1,dive,oneof=topic"`

	// Minimum is the minimum number of bound resources.
	Minimum int `yaml:"minimum,omitempty" validate:"gte=0"`

	// Maximum is the maximum number of bound resources, unbounded when nil.
	Maximum *int `yaml:"maximum,omitempty" validate:"omitempty,gte=1"`

	// EnvironmentVariable receives the comma separated addresses of the
	// bound resources.
	EnvironmentVariable string `yaml:"environment-variable,omitempty" validate:"omitempty,envvar"`
}

// ParameterConfig declares one deployment parameter.
type ParameterConfig struct {
	ID          string   `yaml:"id" validate:"required"`
	Kind        string   `yaml:"kind" validate:"required,oneof=free-text boolean selection"`
	Label       string   `yaml:"label" validate:"required"`
	Description string   `yaml:"description,omitempty"`
	Optional    bool     `yaml:"optional,omitempty"`
	Default     *string  `yaml:"default,omitempty"`
	Options     []string `yaml:"options,omitempty" validate:"required_if=Kind selection"`
}

// ProfileConfig declares one deployment profile.
type ProfileConfig struct {
	ID          string  `yaml:"id" validate:"required"`
	Label       string  `yaml:"label" validate:"required"`
	Description string  `yaml:"description,omitempty"`
	Instances   uint64  `yaml:"instances" validate:"gte=1"`
	CPUs        float64 `yaml:"cpus" validate:"gt=0"`
	Mem         uint64  `yaml:"mem" validate:"gt=0"`
}

// ServiceConfig holds the settings of a processor deployed as a platform service.
type ServiceConfig struct {
	// Image is the container image. May contain placeholders.
	Image string `yaml:"image" validate:"required"`

	// User the service runs as. Defaults to the tenant user.
	User string `yaml:"user,omitempty"`

	NeedsToken     bool `yaml:"needs-token,omitempty"`
	SingleInstance bool `yaml:"single-instance,omitempty"`

	Metrics *MetricsConfig `yaml:"metrics,omitempty"`

	ExposedPorts map[string]PortConfig `yaml:"exposed-ports,omitempty" validate:"dive"`

	// Environment maps variable names to literal templates or parameter references.
	Environment map[string]EnvironmentValue `yaml:"environment,omitempty" validate:"dive,keys,envvar,endkeys"`
}

// MetricsConfig tells the platform where to scrape service metrics.
type MetricsConfig struct {
	Path string `yaml:"path" validate:"required,startswith=/"`
	Port uint16 `yaml:"port" validate:"required"`
}

// PortConfig describes one exposed port.
type PortConfig struct {
	Auth     string `yaml:"auth,omitempty"`
	Mode     string `yaml:"mode,omitempty"`
	Protocol string `yaml:"protocol,omitempty"`
	VHost    string `yaml:"vhost,omitempty"`
}

// EnvironmentValue is either a template or a reference to a deployment
// parameter:
//
//	LOG_LEVEL: info
//	TENANT_NAME: ${TENANT}
//	THRESHOLD:
//	  parameter: threshold
type EnvironmentValue struct {
	Value     string
	Parameter string
}

// UnmarshalYAML accepts a scalar or a mapping with a single parameter key.
func (v *EnvironmentValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v.Value = node.Value
		return nil
	case yaml.MappingNode:
		var ref struct {
			Parameter string `yaml:"parameter"`
		}
		if err := node.Decode(&ref); err != nil {
			return err
		}
		if ref.Parameter == "" {
			return fmt.Errorf("line %d: environment value mapping requires a parameter", node.Line)
		}
		v.Parameter = ref.Parameter
		return nil
	default:
		return fmt.Errorf("line %d: environment value must be a string or a parameter reference", node.Line)
	}
}

// MarshalYAML writes the value back in the form it was read.
func (v EnvironmentValue) MarshalYAML() (interface{}, error) {
	if v.Parameter != "" {
		return map[string]string{"parameter": v.Parameter}, nil
	}
	return v.Value, nil
}

// IsParameter reports whether the value references a deployment parameter.
func (v EnvironmentValue) IsParameter() bool {
	return v.Parameter != ""
}

// TopicsFile is the layout of a resource configuration file.
type TopicsFile struct {
	Topics []TopicConfig `yaml:"topics" validate:"dive"`
}

// TopicConfig is the static configuration of one topic.
type TopicConfig struct {
	// ID is the resource id (e.g. "stream.weather.greenbox").
	ID          string `yaml:"id" validate:"required"`
	Label       string `yaml:"label" validate:"required"`
	Description string `yaml:"description,omitempty"`

	// Address is the topic name on the platform. Defaults to the id.
	Address string `yaml:"address,omitempty"`

	// Readable and Writable default to true.
	Readable *bool `yaml:"readable,omitempty"`
	Writable *bool `yaml:"writable,omitempty"`

	Partitions int `yaml:"partitions,omitempty" validate:"gte=0"`

	// Source is the file the configuration was read from.
	Source string `yaml:"-"`
}

// TopicAddress returns the platform topic name.
func (t *TopicConfig) TopicAddress() string {
	if t.Address != "" {
		return t.Address
	}
	return t.ID
}

// IsReadable reports whether processors may read from the topic.
func (t *TopicConfig) IsReadable() bool {
	return t.Readable == nil || *t.Readable
}

// IsWritable reports whether processors may write to the topic.
func (t *TopicConfig) IsWritable() bool {
	return t.Writable == nil || *t.Writable
}

// FileError describes an error at a position in a configuration file.
type FileError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (e *FileError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	default:
		return e.Message
	}
}
