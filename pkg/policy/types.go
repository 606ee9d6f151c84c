package policy

import (
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
)

// Severity is how a violation affects a deployment.
type Severity string

const (
	// SeverityWarning violations are logged and the deployment proceeds.
	SeverityWarning Severity = "warning"

	// SeverityError violations reject the deployment.
	SeverityError Severity = "error"
)

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityWarning, SeverityError:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity '%s', expected %s or %s", s, SeverityWarning, SeverityError)
	}
}

// Policy is one parsed Rego module.
type Policy struct {
	// Name is the file name without extension.
	Name string `json:"name" yaml:"name"`

	// Source is the file the module was read from.
	Source string `json:"source" yaml:"source"`

	// Package is the data path of the module, e.g. "data.junction.images".
	Package string `json:"package" yaml:"package"`

	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Severity    Severity `json:"severity" yaml:"severity"`

	module *ast.Module
}

// Violation is one element of a deny set.
type Violation struct {
	Policy   string   `json:"policy" yaml:"policy"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Policy, v.Message)
}

// Result holds the violations of one evaluation, in policy order.
type Result struct {
	Violations []Violation `json:"violations" yaml:"violations"`
}

// Allowed reports whether no violation has error severity.
func (r *Result) Allowed() bool {
	return len(r.Errors()) == 0
}

// Errors returns the violations that reject a deployment.
func (r *Result) Errors() []Violation {
	return r.filter(SeverityError)
}

// Warnings returns the violations that are only logged.
func (r *Result) Warnings() []Violation {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(severity Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}
