package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const filterStar = `
def junction(id, label, env, minimum = 0):
    return {
        "id": id,
        "label": label,
        "allowed-resource-types": ["topic"],
        "minimum": minimum,
        "environment-variable": env,
    }

config = {
    "id": "starfilter",
    "technology": "service",
    "label": "Filter for ${TENANT}",
    "inbound-junctions": [junction("input", "Input", "INPUT_TOPICS", minimum = 1)],
    "outbound-junctions": [junction("output", "Output", "OUTPUT_TOPIC")],
    "profiles": [
        {"id": size, "label": size.title(), "instances": n, "cpus": 0.5 * n, "mem": 512 * n}
        for n, size in enumerate(["small", "medium", "large"], 1)
    ],
    "service": {
        "image": "registry.${PLATFORM}/filter:1.0",
        "environment": {"TENANT_NAME": "${TENANT}"},
    },
}
`

func TestLoadProcessorStarlark(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "starfilter.star", filterStar)

	cfg, err := NewLoader().LoadProcessorFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.ID != "starfilter" || cfg.Label != "Filter for ${TENANT}" {
		t.Errorf("Unexpected processor %s %q", cfg.ID, cfg.Label)
	}
	if len(cfg.Profiles) != 3 {
		t.Fatalf("Expected 3 profiles, got %d", len(cfg.Profiles))
	}
	large := cfg.Profiles[2]
	if large.ID != "large" || large.Label != "Large" || large.Instances != 3 || large.CPUs != 1.5 || large.Mem != 1536 {
		t.Errorf("Unexpected profile %+v", large)
	}
	if cfg.InboundJunctions[0].Minimum != 1 {
		t.Errorf("Unexpected inbound junction %+v", cfg.InboundJunctions[0])
	}
	if got := cfg.Service.Environment["TENANT_NAME"]; got.Value != "${TENANT}" {
		t.Errorf("Unexpected environment value %+v", got)
	}
}

func TestLoadTopicsStarlark(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "streams.star", `
regions = ["eu", "us"]

config = struct(topics = [
    {"id": "stream.weather." + r, "label": "Weather " + r.upper(), "partitions": 3}
    for r in regions
])
`)

	topics, err := NewLoader().LoadTopics(dir)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("Expected 2 topics, got %d", len(topics))
	}
	if topics[0].ID != "stream.weather.eu" || topics[1].Label != "Weather US" || topics[1].Partitions != 3 {
		t.Errorf("Unexpected topics %+v %+v", topics[0], topics[1])
	}
}

func TestStarlarkParserErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    string
		wantPos bool
	}{
		{
			name:    "syntax error",
			script:  "config = {\n  \"id\": \n",
			want:    "",
			wantPos: true,
		},
		{
			name:    "undefined name",
			script:  "config = missing",
			want:    "undefined: missing",
			wantPos: true,
		},
		{
			name:    "runtime failure",
			script:  "def f():\n    return 1 // 0\n\nconfig = f()\n",
			want:    "division by zero",
			wantPos: true,
		},
		{
			name:   "missing config",
			script: "other = 1",
			want:   "does not define 'config'",
		},
		{
			name:   "unsupported value",
			script: "def f():\n    pass\n\nconfig = {\"f\": f}\n",
			want:   "unsupported starlark type function",
		},
		{
			name:   "non-string key",
			script: "config = {1: 2}",
			want:   "is not a string",
		},
		{
			name:   "load",
			script: "load(\"other.star\", \"x\")\nconfig = x\n",
			want:   "not allowed",
		},
	}

	parser := NewStarlarkParser(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Export("test.star", []byte(tt.script))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "test.star") {
				t.Errorf("Expected error naming the file, got %v", err)
			}

			var fe *FileError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected file error, got %T", err)
			}
			if tt.wantPos && fe.Line == 0 {
				t.Errorf("Expected position in %v", fe)
			}
		})
	}
}

func TestStarlarkParserBounded(t *testing.T) {
	parser := NewStarlarkParser(10 * time.Millisecond)

	start := time.Now()
	_, err := parser.Export("spin.star", []byte("config = [x for x in range(1000000000) if x < 0]"))
	if err == nil {
		t.Fatal("Expected evaluation to be cancelled")
	}
	if elapsed := time.Since(start); elapsed > 30*time.Second {
		t.Errorf("Evaluation ran for %v", elapsed)
	}
}
