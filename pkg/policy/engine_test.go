package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/ident"
)

const imagesRego = `# METADATA
# title: Trusted registries
# description: Images must come from the platform registry.
package junction.images

deny contains msg if {
	image := input.deployment.configuration.image
	not startswith(image, sprintf("registry.%s/", [input.platform]))
	msg := sprintf("image %s is not from the platform registry", [image])
}
`

const sizingRego = `# METADATA
# custom:
#   severity: warning
package junction.sizing

deny contains msg if {
	input.deployment.configuration.instances > 2
	msg := sprintf("%d instances requested", [input.deployment.configuration.instances])
}

deny contains {"message": "production services belong to a pipeline", "severity": "error"} if {
	startswith(input.platform, "pr-")
	not input.pipeline
}
`

func newEngine(t *testing.T, modules map[string]string) *Engine {
	t.Helper()
	var policies []*Policy
	for name, content := range modules {
		p, err := Parse(name, []byte(content))
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", name, err)
		}
		policies = append(policies, p)
	}
	e, err := NewEngine(context.Background(), policies)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

func review(platform, image string, instances uint64, pipeline *ident.PipelineID) *engine.DeploymentReview {
	return &engine.DeploymentReview{
		Platform:  platform,
		Tenant:    ident.MustParse[ident.Tenant]("greenbox"),
		Processor: "service:filter",
		Instance:  ident.MustParse[ident.Processor]("filter1"),
		Pipeline:  pipeline,
		Deployment: engine.DeploymentPreview{
			ServiceName: ident.MustParse[ident.Service]("filter1"),
			Technology:  engine.ProcessorTechnologyService,
			Profile:     ident.MustParse[ident.Profile]("small"),
			Configuration: &client.ServiceConfiguration{
				Image:     image,
				Instances: instances,
				Env:       map[string]string{},
			},
		},
	}
}

func TestEvaluate(t *testing.T) {
	e := newEngine(t, map[string]string{"images.rego": imagesRego, "sizing.rego": sizingRego})
	pipeline := ident.MustParse[ident.Pipeline]("weather")

	tests := []struct {
		name     string
		review   *engine.DeploymentReview
		errors   []string
		warnings []string
	}{
		{
			name:   "compliant",
			review: review("np-aws-lz", "registry.np-aws-lz/filter:1.0", 1, nil),
		},
		{
			name:   "foreign registry",
			review: review("np-aws-lz", "docker.io/filter:1.0", 1, nil),
			errors: []string{"image docker.io/filter:1.0 is not from the platform registry"},
		},
		{
			name:     "warning only",
			review:   review("np-aws-lz", "registry.np-aws-lz/filter:1.0", 3, nil),
			warnings: []string{"3 instances requested"},
		},
		{
			name:   "severity from result",
			review: review("pr-aws-lz", "registry.pr-aws-lz/filter:1.0", 1, nil),
			errors: []string{"production services belong to a pipeline"},
		},
		{
			name:   "pipeline present",
			review: review("pr-aws-lz", "registry.pr-aws-lz/filter:1.0", 1, &pipeline),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Evaluate(context.Background(), tt.review)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got := messages(result.Errors()); !equal(got, tt.errors) {
				t.Errorf("Errors = %v, want %v", got, tt.errors)
			}
			if got := messages(result.Warnings()); !equal(got, tt.warnings) {
				t.Errorf("Warnings = %v, want %v", got, tt.warnings)
			}
			if result.Allowed() != (len(tt.errors) == 0) {
				t.Errorf("Allowed = %t with errors %v", result.Allowed(), tt.errors)
			}
		})
	}
}

func TestAdmit(t *testing.T) {
	e := newEngine(t, map[string]string{"images.rego": imagesRego, "sizing.rego": sizingRego})

	if err := e.Admit(context.Background(), review("np-aws-lz", "registry.np-aws-lz/filter:1.0", 3, nil)); err != nil {
		t.Errorf("Expected warnings to be admitted, got %v", err)
	}

	err := e.Admit(context.Background(), review("np-aws-lz", "docker.io/filter:1.0", 1, nil))
	if !engine.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if engine.CodeOf(err) != engine.ErrCodePolicyViolation {
		t.Errorf("Expected policy violation code, got %s", engine.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "images: image docker.io/filter:1.0") {
		t.Errorf("Expected violation in message, got %v", err)
	}
}

func TestEvaluateDenyNotASet(t *testing.T) {
	e := newEngine(t, map[string]string{"broken.rego": "package junction.broken\n\ndeny := \"everything\"\n"})

	_, err := e.Evaluate(context.Background(), review("np-aws-lz", "registry.np-aws-lz/filter:1.0", 1, nil))
	if !engine.IsConfig(err) {
		t.Errorf("Expected config error, got %v", err)
	}
	if err := e.Admit(context.Background(), review("np-aws-lz", "registry.np-aws-lz/filter:1.0", 1, nil)); !engine.IsConfig(err) {
		t.Errorf("Expected admission to fail closed, got %v", err)
	}
}

func TestEmptyEngine(t *testing.T) {
	e, err := NewEngine(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.Admit(context.Background(), review("np-aws-lz", "anything", 10, nil)); err != nil {
		t.Errorf("Expected admission without policies, got %v", err)
	}
}

func messages(violations []Violation) []string {
	var out []string
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
