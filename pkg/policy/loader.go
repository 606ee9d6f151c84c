package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"

	"github.com/openfroyo/junction/pkg/engine"
)

// Extension is the file extension of policy modules.
const Extension = ".rego"

// LoadDir parses every policy module in dir, sorted by file name. One
// invalid module fails the whole load.
func LoadDir(dir string) ([]*Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, engine.NewConfigError("failed to read policy directory", err).
			WithCode(engine.ErrCodeInvalidConfig).
			WithSubjectString("dir", dir)
	}

	var policies []*Policy
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || filepath.Ext(entry.Name()) != Extension {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	slices.SortFunc(policies, func(a, b *Policy) int {
		return strings.Compare(a.Name, b.Name)
	})
	return policies, nil
}

// LoadFile parses one policy module.
func LoadFile(path string) (*Policy, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidPolicy(path, err)
	}
	return Parse(path, content)
}

// Parse parses a Rego v1 module read from source.
func Parse(source string, content []byte) (*Policy, error) {
	module, err := ast.ParseModuleWithOpts(source, string(content), ast.ParserOptions{
		ProcessAnnotation: true,
		RegoVersion:       ast.RegoV1,
	})
	if err != nil {
		return nil, invalidPolicy(source, err)
	}
	if module == nil {
		return nil, invalidPolicy(source, fmt.Errorf("empty module"))
	}

	base := filepath.Base(source)
	p := &Policy{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Source:   source,
		Package:  module.Package.Path.String(),
		Severity: SeverityError,
		module:   module,
	}

	for _, a := range module.Annotations {
		if a.Scope != "package" {
			continue
		}
		p.Title = a.Title
		p.Description = a.Description
		if raw, ok := a.Custom["severity"]; ok {
			name, _ := raw.(string)
			if p.Severity, err = ParseSeverity(name); err != nil {
				return nil, invalidPolicy(source, err)
			}
		}
	}

	return p, nil
}

func invalidPolicy(path string, err error) *engine.Error {
	return engine.NewConfigError("invalid policy", err).
		WithCode(engine.ErrCodeInvalidConfig).
		WithSubjectString("file", path)
}
