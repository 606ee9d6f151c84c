package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// Engine evaluates prepared policies. It is read-only after construction and
// safe for concurrent use.
type Engine struct {
	policies []*compiledPolicy
}

type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

var _ engine.DeploymentPolicy = (*Engine)(nil)

// NewEngine prepares the deny query of every policy.
func NewEngine(ctx context.Context, policies []*Policy) (*Engine, error) {
	e := &Engine{policies: make([]*compiledPolicy, 0, len(policies))}

	for _, p := range policies {
		query, err := rego.New(
			rego.ParsedModule(p.module),
			rego.Query(p.Package+".deny"),
		).PrepareForEval(ctx)
		if err != nil {
			return nil, invalidPolicy(p.Source, err)
		}
		e.policies = append(e.policies, &compiledPolicy{policy: p, query: query})
	}

	return e, nil
}

// Load parses and prepares every policy module in dir.
func Load(ctx context.Context, dir string) (*Engine, error) {
	policies, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewEngine(ctx, policies)
}

// Policies returns the policies of the engine in evaluation order.
func (e *Engine) Policies() []*Policy {
	out := make([]*Policy, len(e.policies))
	for i, cp := range e.policies {
		out[i] = cp.policy
	}
	return out
}

// Evaluate runs every policy against input, which must encode to a JSON
// object. A policy that fails at evaluation time is a config error.
func (e *Engine) Evaluate(ctx context.Context, input any) (*Result, error) {
	doc, err := document(input)
	if err != nil {
		return nil, engine.NewValidationError("policy input is not a JSON object", err)
	}

	result := &Result{}
	for _, cp := range e.policies {
		rs, err := cp.query.Eval(ctx, rego.EvalInput(doc))
		if err != nil {
			return nil, engine.NewConfigError(fmt.Sprintf("policy '%s' failed to evaluate", cp.policy.Name), err).
				WithCode(engine.ErrCodeInvalidConfig).
				WithSubjectString("file", cp.policy.Source)
		}

		for _, r := range rs {
			for _, expr := range r.Expressions {
				denied, ok := expr.Value.([]any)
				if !ok {
					return nil, engine.NewConfigError(fmt.Sprintf("policy '%s' deny is not a set", cp.policy.Name), nil).
						WithCode(engine.ErrCodeInvalidConfig).
						WithSubjectString("file", cp.policy.Source)
				}
				for _, d := range denied {
					result.Violations = append(result.Violations, violation(cp.policy, d))
				}
			}
		}
	}

	return result, nil
}

// Admit rejects a deployment with a validation error when any error
// violation is found. Warnings are logged.
func (e *Engine) Admit(ctx context.Context, review *engine.DeploymentReview) (err error) {
	service := review.Deployment.ServiceName
	ctx, done := telemetry.Observe(ctx, "policy.admit",
		telemetry.AttrService.String(service.String()),
		telemetry.AttrPlatform.String(review.Platform),
		telemetry.AttrTenant.String(review.Tenant.String()),
	)
	defer func() { done(err) }()

	result, err := e.Evaluate(ctx, review)
	if err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("policy").WithService(service.String())
	for _, w := range result.Warnings() {
		logger.Warnf("policy warning %s", w)
	}

	rejected := result.Errors()
	if len(rejected) == 0 {
		logger.Debugf("deployment admitted by %d policies", len(e.policies))
		return nil
	}

	messages := make([]string, len(rejected))
	for i, v := range rejected {
		messages[i] = v.String()
	}
	return engine.NewValidationError("deployment rejected by policy: "+strings.Join(messages, "; "), nil).
		WithCode(engine.ErrCodePolicyViolation).
		WithOperation("policy.admit").
		WithSubject("service", service)
}

// violation converts one deny element. Objects may carry "message" and
// "severity"; anything else is the message itself.
func violation(p *Policy, value any) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}

	switch d := value.(type) {
	case string:
		v.Message = d
	case map[string]any:
		if msg, ok := d["message"].(string); ok {
			v.Message = msg
		} else {
			v.Message = fmt.Sprint(d)
		}
		if raw, ok := d["severity"].(string); ok {
			if severity, err := ParseSeverity(raw); err == nil {
				v.Severity = severity
			}
		}
	default:
		v.Message = fmt.Sprint(d)
	}

	return v
}

// document converts input to the generic JSON form rego evaluates.
func document(input any) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
