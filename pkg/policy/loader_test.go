package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openfroyo/junction/pkg/engine"
)

func TestParse(t *testing.T) {
	p, err := Parse("policies/images.rego", []byte(imagesRego))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Name != "images" {
		t.Errorf("Name = %s, want images", p.Name)
	}
	if p.Package != "data.junction.images" {
		t.Errorf("Package = %s, want data.junction.images", p.Package)
	}
	if p.Title != "Trusted registries" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.Severity != SeverityError {
		t.Errorf("Severity = %s, want error by default", p.Severity)
	}

	p, err = Parse("sizing.rego", []byte(sizingRego))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Severity = %s, want warning", p.Severity)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "syntax",
			content: "package junction.broken\n\ndeny contains msg if {",
		},
		{
			name:    "no package",
			content: "deny contains \"x\" if { true }\n",
		},
		{
			name: "unknown severity",
			content: `# METADATA
# custom:
#   severity: fatal
package junction.broken

deny contains "x" if { false }
`,
		},
		{
			name:    "rego v0 syntax",
			content: "package junction.broken\n\ndeny[msg] { msg := \"x\" }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("broken.rego", []byte(tt.content))
			if !engine.IsConfig(err) {
				t.Fatalf("Expected config error, got %v", err)
			}
			if engine.CodeOf(err) != engine.ErrCodeInvalidConfig {
				t.Errorf("Expected invalid config code, got %s", engine.CodeOf(err))
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"sizing.rego":  sizingRego,
		"images.rego":  imagesRego,
		"README.md":    "# policies\n",
		".hidden.rego": "not rego at all",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.rego"), 0o755); err != nil {
		t.Fatal(err)
	}

	policies, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
	if policies[0].Name != "images" || policies[1].Name != "sizing" {
		t.Errorf("Expected policies sorted by name, got %s, %s", policies[0].Name, policies[1].Name)
	}
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
		if !engine.IsConfig(err) {
			t.Errorf("Expected config error, got %v", err)
		}
	})

	t.Run("one invalid module", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "images.rego"), []byte(imagesRego), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadDir(dir)
		if !engine.IsConfig(err) {
			t.Errorf("Expected config error, got %v", err)
		}
	})
}
