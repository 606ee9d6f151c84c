// Package target carries the active platform and tenant identity, the client
// factory, and the placeholder mapping derived from them.
package target

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/ident"
	"github.com/openfroyo/junction/pkg/placeholder"
)

// Platform describes one managed platform.
type Platform struct {
	// Name is the platform name (e.g. "np-aws-lz").
	Name string `yaml:"name" json:"name" validate:"required,hostname_rfc1123"`

	// Description is a human readable description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Realm is the authentication realm of the platform.
	Realm string `yaml:"realm" json:"realm" validate:"required"`

	// InternalDomain is the domain used for services inside the platform.
	InternalDomain string `yaml:"internal-domain" json:"internal-domain" validate:"required,fqdn"`

	// PublicDomain is the public virtual hosts domain.
	PublicDomain string `yaml:"public-domain" json:"public-domain" validate:"required,fqdn"`

	// ConsoleURL overrides the derived console URL.
	ConsoleURL string `yaml:"console-url,omitempty" json:"console-url,omitempty" validate:"omitempty,url"`

	// MonitoringURL overrides the derived monitoring URL.
	MonitoringURL string `yaml:"monitoring-url,omitempty" json:"monitoring-url,omitempty" validate:"omitempty,url"`

	// RestAPIURL overrides the derived control-plane API URL.
	RestAPIURL string `yaml:"rest-api-url,omitempty" json:"rest-api-url,omitempty" validate:"omitempty,url"`

	// AccessTokenURL overrides the derived token endpoint.
	AccessTokenURL string `yaml:"access-token-url,omitempty" json:"access-token-url,omitempty" validate:"omitempty,url"`
}

// Console returns the console URL of the platform.
func (p Platform) Console() string {
	if p.ConsoleURL != "" {
		return p.ConsoleURL
	}
	return "https://console." + p.PublicDomain
}

// Monitoring returns the monitoring URL for tenant.
func (p Platform) Monitoring(tenant string) string {
	if p.MonitoringURL != "" {
		return p.MonitoringURL
	}
	return fmt.Sprintf("https://monitoring-%s.%s", tenant, p.PublicDomain)
}

// RestAPI returns the control-plane API base URL.
func (p Platform) RestAPI() string {
	if p.RestAPIURL != "" {
		return p.RestAPIURL
	}
	return "https://api." + p.PublicDomain + "/resources/v0"
}

// AccessToken returns the token endpoint of the platform.
func (p Platform) AccessToken() string {
	if p.AccessTokenURL != "" {
		return p.AccessTokenURL
	}
	return fmt.Sprintf("https://auth.%s/auth/realms/%s/protocol/openid-connect/token", p.PublicDomain, p.Realm)
}

// Tenant is the identity deployments run under.
type Tenant struct {
	Name ident.TenantName
	// User is the platform user the tenant's services run as (e.g. "1903:1903").
	User string
}

// Context is the active target: who deploys where, and how to reach the
// platform. Safe for concurrent use.
type Context struct {
	platform Platform
	tenant   Tenant
	factory  client.Factory
	mapping  func() placeholder.Mapping
}

// New creates a target context.
func New(platform Platform, tenant Tenant, factory client.Factory) *Context {
	c := &Context{
		platform: platform,
		tenant:   tenant,
		factory:  factory,
	}
	c.mapping = sync.OnceValue(func() placeholder.Mapping {
		return placeholder.NewMapping(c.Attributes())
	})
	return c
}

// Platform returns the active platform.
func (c *Context) Platform() Platform {
	return c.platform
}

// Tenant returns the active tenant.
func (c *Context) Tenant() Tenant {
	return c.tenant
}

// Attributes returns the platform and tenant values that feed the template mapping.
func (c *Context) Attributes() placeholder.Attributes {
	tenant := c.tenant.Name.String()
	return placeholder.Attributes{
		ConsoleURL:         c.platform.Console(),
		InternalDomain:     c.platform.InternalDomain,
		MonitoringURL:      c.platform.Monitoring(tenant),
		Platform:           c.platform.Name,
		PublicVhostsDomain: c.platform.PublicDomain,
		Realm:              c.platform.Realm,
		RestAccessTokenURL: c.platform.AccessToken(),
		RestAPIURL:         c.platform.RestAPI(),
		Tenant:             tenant,
		User:               c.tenant.User,
	}
}

// TemplateMapping returns the mapping of this context. It is built once, so
// the random placeholders are stable for the lifetime of the context. The
// returned map is a copy.
func (c *Context) TemplateMapping() placeholder.Mapping {
	return c.mapping().Clone()
}

// Client returns a client authenticated for this context.
func (c *Context) Client(ctx context.Context) (client.Client, error) {
	if c.factory == nil {
		return nil, fmt.Errorf("no client factory configured for platform %s", c.platform.Name)
	}
	return c.factory.Client(ctx, client.Target{
		Platform: c.platform.Name,
		Tenant:   c.tenant.Name.String(),
	})
}

// String returns "tenant@platform".
func (c *Context) String() string {
	return c.tenant.Name.String() + "@" + c.platform.Name
}
