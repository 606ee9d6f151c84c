package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/target"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Environment variables that override settings.
const (
	EnvPlatform = "JUNCTION_PLATFORM"
	EnvTenant   = "JUNCTION_TENANT"
	EnvSettings = "JUNCTION_CONFIG"
)

// Client modes.
const (
	ClientModeREST   = "rest"
	ClientModeMemory = "memory"
)

// Settings is the CLI settings file.
type Settings struct {
	// Platforms is the platform catalogue.
	Platforms []target.Platform `yaml:"platforms" validate:"required,min=1,dive"`

	// Tenants are the tenants credentials are known for.
	Tenants []TenantSettings `yaml:"tenants" validate:"required,min=1,dive"`

	// DefaultPlatform is used when no platform is selected.
	DefaultPlatform string `yaml:"default-platform,omitempty"`

	// DefaultTenant is used when no tenant is selected.
	DefaultTenant string `yaml:"default-tenant,omitempty"`

	// ProcessorDir holds processor configuration files. Relative paths are
	// resolved against the settings file.
	ProcessorDir string `yaml:"processor-dir" validate:"required"`

	// ResourceDir holds resource configuration files.
	ResourceDir string `yaml:"resource-dir" validate:"required"`

	// PolicyDir holds Rego admission policies. Deployments are not checked
	// when it is empty.
	PolicyDir string `yaml:"policy-dir,omitempty"`

	// Journal is the SQLite file lifecycle operations are recorded in.
	// Nothing is recorded when it is empty.
	Journal string `yaml:"journal,omitempty"`

	// Client configures how the platform is reached.
	Client ClientSettings `yaml:"client"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// TenantSettings identifies one tenant and its credentials.
type TenantSettings struct {
	Name string `yaml:"name" validate:"required"`

	// User the tenant's services run as (e.g. "1903:1903").
	User string `yaml:"user" validate:"required"`

	// ClientID for the client-credentials flow. Defaults to "robot:<platform>:<tenant>".
	ClientID string `yaml:"client-id,omitempty"`

	// SecretEnv names the environment variable holding the client secret.
	SecretEnv string `yaml:"secret-env,omitempty" validate:"omitempty,envvar"`
}

// ClientSettings selects the platform client.
type ClientSettings struct {
	Mode string `yaml:"mode" validate:"oneof=rest memory"`
}

// DefaultSettings returns settings with the defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		ProcessorDir: "processors",
		ResourceDir:  "resources",
		Client:       ClientSettings{Mode: ClientModeREST},
		Telemetry:    telemetry.DefaultConfig(),
	}
}

// LoadSettings reads the settings file at path, applies environment overrides
// and validates the result.
func LoadSettings(path string) (*Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewConfigError("failed to read settings", err).
			WithCode(engine.ErrCodeInvalidConfig).
			WithSubjectString("file", path)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(content, settings); err != nil {
		return nil, invalidConfig("invalid settings", path, err)
	}

	base := filepath.Dir(path)
	settings.ProcessorDir = resolvePath(base, settings.ProcessorDir)
	settings.ResourceDir = resolvePath(base, settings.ResourceDir)
	settings.PolicyDir = resolvePath(base, settings.PolicyDir)
	settings.Journal = resolvePath(base, settings.Journal)

	settings.ApplyEnv(os.Getenv)

	if err := settings.Validate(); err != nil {
		return nil, invalidConfig("invalid settings", path, err)
	}
	return settings, nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// ApplyEnv overrides the default platform and tenant from the environment.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvPlatform); v != "" {
		s.DefaultPlatform = v
	}
	if v := getenv(EnvTenant); v != "" {
		s.DefaultTenant = v
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if err := newValidator().Struct(s); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}

	platforms := make(map[string]bool)
	for _, p := range s.Platforms {
		if platforms[p.Name] {
			return fmt.Errorf("platform '%s' is listed twice", p.Name)
		}
		platforms[p.Name] = true
	}
	tenants := make(map[string]bool)
	for _, t := range s.Tenants {
		if tenants[t.Name] {
			return fmt.Errorf("tenant '%s' is listed twice", t.Name)
		}
		tenants[t.Name] = true
	}

	if s.DefaultPlatform != "" && !platforms[s.DefaultPlatform] {
		return fmt.Errorf("default platform '%s' is not listed", s.DefaultPlatform)
	}
	if s.DefaultTenant != "" && !tenants[s.DefaultTenant] {
		return fmt.Errorf("default tenant '%s' is not listed", s.DefaultTenant)
	}

	if s.Telemetry != nil {
		if err := s.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

// Platform returns the named platform, or the default platform when name is
// empty. A single listed platform is the default.
func (s *Settings) Platform(name string) (target.Platform, error) {
	if name == "" {
		name = s.DefaultPlatform
	}
	if name == "" && len(s.Platforms) == 1 {
		return s.Platforms[0], nil
	}
	if name == "" {
		return target.Platform{}, engine.NewConfigError("no platform selected", nil).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	for _, p := range s.Platforms {
		if p.Name == name {
			return p, nil
		}
	}
	return target.Platform{}, engine.NewNotFoundError(fmt.Sprintf("platform '%s' is not configured", name), nil).
		WithSubjectString("platform", name)
}

// Tenant returns the named tenant, or the default tenant when name is empty.
// A single listed tenant is the default.
func (s *Settings) Tenant(name string) (TenantSettings, error) {
	if name == "" {
		name = s.DefaultTenant
	}
	if name == "" && len(s.Tenants) == 1 {
		return s.Tenants[0], nil
	}
	if name == "" {
		return TenantSettings{}, engine.NewConfigError("no tenant selected", nil).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	for _, t := range s.Tenants {
		if t.Name == name {
			return t, nil
		}
	}
	return TenantSettings{}, engine.NewNotFoundError(fmt.Sprintf("tenant '%s' is not configured", name), nil).
		WithSubjectString("tenant", name)
}

// ClientIDFor returns the client id used on platform.
func (t TenantSettings) ClientIDFor(platform string) string {
	if t.ClientID != "" {
		return t.ClientID
	}
	return fmt.Sprintf("robot:%s:%s", platform, t.Name)
}

// Secret reads the client secret from the configured environment variable.
func (t TenantSettings) Secret(getenv func(string) string) (string, error) {
	if t.SecretEnv == "" {
		return "", engine.NewConfigError(fmt.Sprintf("tenant '%s' has no secret-env", t.Name), nil).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	secret := getenv(t.SecretEnv)
	if secret == "" {
		return "", engine.NewConfigError(fmt.Sprintf("environment variable %s is not set", t.SecretEnv), nil).
			WithCode(engine.ErrCodeInvalidConfig).
			WithSubjectString("tenant", t.Name)
	}
	return secret, nil
}
