// Package memory provides an in-memory platform implementing client.Client.
//
// Services follow the lifecycle Undeployed -> Deployed -> Running -> Deployed
// -> Undeployed. Every transition is idempotent. Used by tests and by the
// CLI's "memory" client mode.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openfroyo/junction/pkg/client"
)

// Service is the stored state of one deployed service.
type Service struct {
	Configuration client.ServiceConfiguration
	Running       bool
	TaskID        string
	UpdatedAt     time.Time
}

// Call records one client invocation.
type Call struct {
	Tenant    string
	Operation string
	Subject   string
}

// Platform is a thread-safe in-memory control plane shared by every client it
// hands out. Tenants are isolated from each other.
type Platform struct {
	mu       sync.RWMutex
	services map[string]map[string]*Service           // tenant -> service -> state
	topics   map[string]map[string]client.TopicStatus // tenant -> topic -> status
	calls    []Call
	authErr  error
}

// New creates an empty platform.
func New() *Platform {
	return &Platform{
		services: make(map[string]map[string]*Service),
		topics:   make(map[string]map[string]client.TopicStatus),
	}
}

// AddTopic registers a topic as allocated for tenant.
func (p *Platform) AddTopic(tenant, topic string, status client.TopicStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.topics[tenant] == nil {
		p.topics[tenant] = make(map[string]client.TopicStatus)
	}
	p.topics[tenant][topic] = status
}

// FailAuthentication makes every subsequent Client call fail with err.
// Passing nil restores normal behavior.
func (p *Platform) FailAuthentication(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authErr = err
}

// Service returns a copy of the stored state of a service.
func (p *Platform) Service(tenant, service string) (Service, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.services[tenant][service]
	if !ok {
		return Service{}, false
	}
	return *s, true
}

// Services returns the names of every service deployed for tenant, sorted.
func (p *Platform) Services(tenant string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.services[tenant]))
	for name := range p.services[tenant] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Calls returns every recorded invocation in order.
func (p *Platform) Calls() []Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.calls)
}

// Client implements client.Factory.
func (p *Platform) Client(ctx context.Context, target client.Target) (client.Client, error) {
	p.mu.RLock()
	authErr := p.authErr
	p.mu.RUnlock()

	if authErr != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrUnauthorized, authErr)
	}
	if target.Tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", client.ErrUnauthorized)
	}
	return &tenantClient{platform: p, tenant: target.Tenant}, nil
}

// tenantClient is a client.Client bound to one tenant.
type tenantClient struct {
	platform *Platform
	tenant   string
}

func (c *tenantClient) record(op, subject string) {
	c.platform.calls = append(c.platform.calls, Call{Tenant: c.tenant, Operation: op, Subject: subject})
}

func (c *tenantClient) DeployService(ctx context.Context, service string, cfg *client.ServiceConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := c.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	c.record("deploy", service)

	if p.services[c.tenant] == nil {
		p.services[c.tenant] = make(map[string]*Service)
	}
	stored := *cfg
	stored.Env = make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		stored.Env[k] = v
	}
	stored.Topics = slices.Clone(cfg.Topics)

	if existing, ok := p.services[c.tenant][service]; ok {
		existing.Configuration = stored
		existing.UpdatedAt = time.Now()
		return nil
	}
	p.services[c.tenant][service] = &Service{
		Configuration: stored,
		TaskID:        uuid.NewString(),
		UpdatedAt:     time.Now(),
	}
	return nil
}

func (c *tenantClient) StartService(ctx context.Context, service string) error {
	return c.transition(ctx, "start", service, func(s *Service) { s.Running = true })
}

func (c *tenantClient) StopService(ctx context.Context, service string) error {
	return c.transition(ctx, "stop", service, func(s *Service) { s.Running = false })
}

func (c *tenantClient) UndeployService(ctx context.Context, service string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := c.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	c.record("undeploy", service)

	if _, ok := p.services[c.tenant][service]; !ok {
		return fmt.Errorf("service %s: %w", service, client.ErrNotFound)
	}
	delete(p.services[c.tenant], service)
	return nil
}

func (c *tenantClient) transition(ctx context.Context, op, service string, apply func(*Service)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := c.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	c.record(op, service)

	s, ok := p.services[c.tenant][service]
	if !ok {
		return fmt.Errorf("service %s: %w", service, client.ErrNotFound)
	}
	apply(s)
	s.UpdatedAt = time.Now()
	return nil
}

func (c *tenantClient) ServiceStatus(ctx context.Context, service string) (*client.ServiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := c.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	c.record("status", service)

	s, ok := p.services[c.tenant][service]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", service, client.ErrNotFound)
	}
	return &client.ServiceStatus{Deployed: true, Running: s.Running}, nil
}

func (c *tenantClient) TopicStatus(ctx context.Context, topic string) (*client.TopicStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := c.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	c.record("topic-status", topic)

	status, ok := p.topics[c.tenant][topic]
	if !ok {
		return nil, fmt.Errorf("topic %s: %w", topic, client.ErrNotFound)
	}
	status.Notifications = slices.Clone(status.Notifications)
	return &status, nil
}
