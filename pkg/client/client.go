// Package client defines the platform control-plane contract consumed by the
// orchestration core. Implementations own authentication and wire format;
// the core only sees these types.
package client

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) when the platform reports that a
// service or resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned (possibly wrapped) when token acquisition or
// authentication fails.
var ErrUnauthorized = errors.New("unauthorized")

// Target identifies the platform and tenant a client is authenticated for.
type Target struct {
	Platform string
	Tenant   string
}

// Factory yields authenticated clients.
type Factory interface {
	// Client returns a client authenticated for target.
	Client(ctx context.Context, target Target) (Client, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, target Target) (Client, error)

// Client returns f(ctx, target).
func (f FactoryFunc) Client(ctx context.Context, target Target) (Client, error) {
	return f(ctx, target)
}

// Client submits deployment, lifecycle and status requests for one tenant.
type Client interface {
	// DeployService creates or replaces the configuration of a service.
	DeployService(ctx context.Context, service string, cfg *ServiceConfiguration) error

	// StartService starts a deployed service.
	StartService(ctx context.Context, service string) error

	// StopService stops a running service.
	StopService(ctx context.Context, service string) error

	// UndeployService removes a service.
	UndeployService(ctx context.Context, service string) error

	// ServiceStatus returns the status of a service.
	ServiceStatus(ctx context.Context, service string) (*ServiceStatus, error)

	// TopicStatus returns the allocation status of a topic.
	TopicStatus(ctx context.Context, topic string) (*TopicStatus, error)
}

// ServiceConfiguration is the technology-specific deployment request for a
// platform service.
type ServiceConfiguration struct {
	Image          string            `json:"image" yaml:"image"`
	CPUs           float64           `json:"cpus" yaml:"cpus"`
	Mem            uint64            `json:"mem" yaml:"mem"`
	Instances      uint64            `json:"instances" yaml:"instances"`
	Env            map[string]string `json:"env" yaml:"env"`
	User           string            `json:"user,omitempty" yaml:"user,omitempty"`
	NeedsToken     bool              `json:"needsToken" yaml:"needs-token"`
	SingleInstance bool              `json:"singleInstance" yaml:"single-instance"`
	ExposedPorts   map[string]Port   `json:"exposedPorts,omitempty" yaml:"exposed-ports,omitempty"`
	Metrics        *Metrics          `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Topics         []string          `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Port describes an exposed service port.
type Port struct {
	Auth     string `json:"auth,omitempty" yaml:"auth,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	VHost    string `json:"vhost,omitempty" yaml:"vhost,omitempty"`
}

// Metrics describes where the platform scrapes service metrics.
type Metrics struct {
	Path string `json:"path" yaml:"path"`
	Port uint16 `json:"port" yaml:"port"`
}

// ServiceStatus reports the observed state of a service.
type ServiceStatus struct {
	Deployed bool   `json:"deployed"`
	Running  bool   `json:"running"`
	Message  string `json:"message,omitempty"`
}

// TopicStatus reports the observed allocation of a topic.
type TopicStatus struct {
	Provisioned       bool     `json:"provisioned"`
	Partitions        int      `json:"partitions"`
	ReplicationFactor int      `json:"replicationFactor"`
	Notifications     []string `json:"notifications,omitempty"`
}
