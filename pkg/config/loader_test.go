package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/junction/pkg/engine"
)

const filterYAML = `
id: filter
technology: service
label: Filter for ${TENANT}
description: Drops messages below a threshold
version: 1.0.0
more-info-url: https://docs.${PUBLIC_VHOSTS_DOMAIN}/filter
inbound-junctions:
  - id: input
    label: Input topics
    allowed-resource-types: [topic]
    minimum: 1
    maximum: 2
    environment-variable: INPUT_TOPICS
outbound-junctions:
  - id: output
    label: Output topic
    allowed-resource-types: [topic]
    environment-variable: OUTPUT_TOPIC
deployment-parameters:
  - id: threshold
    kind: free-text
    label: Threshold
    optional: true
    default: "10"
  - id: mode
    kind: selection
    label: Mode
    options: [fast, slow]
profiles:
  - id: small
    label: Small
    instances: 1
    cpus: 0.5
    mem: 512
service:
  image: registry.${PLATFORM}/filter:1.0.0
  needs-token: true
  metrics:
    path: /metrics
    port: 9090
  environment:
    TENANT_NAME: ${TENANT}
    THRESHOLD:
      parameter: threshold
`

const alphaCUE = `
id:    "alpha"
label: "Alpha for ${TENANT}"
profiles: [{id: "small", label: "Small", instances: 1, cpus: 0.5, mem: 512}]
service: {
	image: "registry/alpha:1"
	environment: MODE: {parameter: "mode"}
}
"deployment-parameters": [{id: "mode", kind: "selection", label: "Mode", options: ["a", "b"]}]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadProcessorYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "filter.yaml", filterYAML)

	cfg, err := NewLoader().LoadProcessorFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.ID != "filter" || cfg.Technology != "service" {
		t.Errorf("Unexpected identity %s/%s", cfg.Technology, cfg.ID)
	}
	if cfg.Source != path {
		t.Errorf("Expected source %s, got %s", path, cfg.Source)
	}
	if len(cfg.InboundJunctions) != 1 || *cfg.InboundJunctions[0].Maximum != 2 {
		t.Errorf("Unexpected inbound junctions %+v", cfg.InboundJunctions)
	}
	if cfg.OutboundJunctions[0].Maximum != nil {
		t.Error("Expected unbounded outbound junction")
	}
	if got := cfg.Service.Environment["THRESHOLD"]; !got.IsParameter() || got.Parameter != "threshold" {
		t.Errorf("Expected parameter reference, got %+v", got)
	}
	if got := cfg.Service.Environment["TENANT_NAME"]; got.IsParameter() || got.Value != "${TENANT}" {
		t.Errorf("Expected literal template, got %+v", got)
	}
	if cfg.Service.Metrics == nil || cfg.Service.Metrics.Port != 9090 {
		t.Errorf("Unexpected metrics %+v", cfg.Service.Metrics)
	}
}

func TestLoadProcessorCUE(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "alpha.cue", alphaCUE)

	cfg, err := NewLoader().LoadProcessorFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.Technology != "service" {
		t.Errorf("Expected default technology, got %q", cfg.Technology)
	}
	if cfg.Label != "Alpha for ${TENANT}" {
		t.Errorf("Unexpected label %q", cfg.Label)
	}
	if cfg.Profiles[0].CPUs != 0.5 {
		t.Errorf("Unexpected cpus %v", cfg.Profiles[0].CPUs)
	}
	if got := cfg.Service.Environment["MODE"]; got.Parameter != "mode" {
		t.Errorf("Expected parameter reference, got %+v", got)
	}
}

func TestLoadProcessorInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "empty file",
			file:    "filter.yaml",
			content: "",
			want:    "empty configuration",
		},
		{
			name:    "unknown field",
			file:    "filter.yaml",
			content: filterYAML + "colour: blue\n",
			want:    "colour",
		},
		{
			name:    "id does not match file name",
			file:    "other.yaml",
			content: filterYAML,
			want:    "does not match file name",
		},
		{
			name:    "unknown placeholder",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "Filter for ${TENANT}", "Filter for ${NOPE}", 1),
			want:    "NOPE",
		},
		{
			name:    "random placeholder in image",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "filter:1.0.0", "filter:${RANDOM}", 1),
			want:    "service image",
		},
		{
			name:    "random placeholder in label",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "Filter for ${TENANT}", "Filter ${RANDOM_UUID}", 1),
			want:    "RANDOM_UUID",
		},
		{
			name:    "unknown parameter reference",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "parameter: threshold", "parameter: missing", 1),
			want:    "unknown parameter 'missing'",
		},
		{
			name:    "duplicate junction",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "id: output", "id: input", 1),
			want:    "declared twice",
		},
		{
			name:    "shared environment variable",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "OUTPUT_TOPIC", "INPUT_TOPICS", 1),
			want:    "INPUT_TOPICS",
		},
		{
			name:    "invalid environment variable name",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "OUTPUT_TOPIC", "output-topic", 1),
			want:    "envvar",
		},
		{
			name:    "maximum below minimum",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "minimum: 1", "minimum: 3", 1),
			want:    "less than minimum",
		},
		{
			name:    "selection without options",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "options: [fast, slow]", "", 1),
			want:    "options",
		},
		{
			name:    "invalid profile id",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "id: small", "id: Small", 1),
			want:    "'Small' is not a valid",
		},
		{
			name:    "missing profiles",
			file:    "filter.yaml",
			content: strings.Replace(filterYAML, "profiles:", "unused-profiles:", 1),
			want:    "unused-profiles",
		},
		{
			name:    "cue schema violation",
			file:    "alpha.cue",
			content: alphaCUE + "colour: \"blue\"\n",
			want:    "colour",
		},
		{
			name:    "cue syntax error",
			file:    "alpha.cue",
			content: "id: \"alpha\n",
			want:    "alpha.cue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			_, err := NewLoader().LoadProcessorFile(path)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !engine.IsConfig(err) {
				t.Errorf("Expected config error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to contain %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadProcessorRandomPlaceholders(t *testing.T) {
	content := strings.Replace(filterYAML, "TENANT_NAME: ${TENANT}", "INSTANCE_ID: ${RANDOM_UUID}", 1)
	path := writeFile(t, t.TempDir(), "filter.yaml", content)

	cfg, err := NewLoader().LoadProcessorFile(path)
	if err != nil {
		t.Fatalf("Expected random placeholders in the environment to be accepted, got %v", err)
	}
	if got := cfg.Service.Environment["INSTANCE_ID"].Value; got != "${RANDOM_UUID}" {
		t.Errorf("Expected template to be kept unresolved, got %q", got)
	}
}

func TestLoadProcessors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "filter.yaml", filterYAML)
	writeFile(t, dir, "alpha.cue", alphaCUE)
	writeFile(t, dir, "README.md", "ignored")
	writeFile(t, dir, ".hidden.yaml", "ignored: true")

	loader := NewLoader()
	first, err := loader.LoadProcessors(dir)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	second, err := loader.LoadProcessors(dir)
	if err != nil {
		t.Fatalf("Failed to load again: %v", err)
	}

	if len(first) != 2 || first[0].ID != "alpha" || first[1].ID != "filter" {
		t.Fatalf("Expected [alpha filter], got %d configs", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Expected identical order, got %s and %s", first[i].ID, second[i].ID)
		}
	}
}

func TestLoadProcessorsFailsAsAWhole(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "filter.yaml", filterYAML)
	writeFile(t, dir, "broken.yaml", "id: broken\n")

	configs, err := NewLoader().LoadProcessors(dir)
	if err == nil {
		t.Fatal("Expected error")
	}
	if configs != nil {
		t.Error("Expected no partial result")
	}
	if !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("Expected error to name the file, got %v", err)
	}
}

func TestLoadProcessorsDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "filter.yaml", filterYAML)
	writeFile(t, dir, "filter.yml", filterYAML)

	_, err := NewLoader().LoadProcessors(dir)
	if engine.CodeOf(err) != engine.ErrCodeDuplicate {
		t.Errorf("Expected duplicate error, got %v", err)
	}
}

func TestLoadProcessor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "filter.yaml", filterYAML)
	loader := NewLoader()

	cfg, err := loader.LoadProcessor(dir, "filter")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.ID != "filter" {
		t.Errorf("Unexpected id %s", cfg.ID)
	}

	if _, err := loader.LoadProcessor(dir, "missing"); !engine.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := NewLoader().LoadProcessors(filepath.Join(t.TempDir(), "nope"))
	if !engine.IsConfig(err) {
		t.Errorf("Expected config error, got %v", err)
	}
}

const topicsYAML = `
topics:
  - id: stream.weather
    label: Weather stream
    address: stream.weather.greenbox
    partitions: 3
  - id: scratch.out
    label: Output
    readable: false
`

func TestLoadTopics(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "streams.yaml", topicsYAML)
	writeFile(t, dir, "more.cue", `topics: [{id: "internal.alerts", label: "Alerts"}]`)

	topics, err := NewLoader().LoadTopics(dir)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	var ids []string
	for _, topic := range topics {
		ids = append(ids, topic.ID)
	}
	if got := strings.Join(ids, ","); got != "internal.alerts,scratch.out,stream.weather" {
		t.Fatalf("Unexpected topics %s", got)
	}

	scratch, weather := topics[1], topics[2]
	if scratch.TopicAddress() != "scratch.out" {
		t.Errorf("Expected address to default to id, got %s", scratch.TopicAddress())
	}
	if scratch.IsReadable() || !scratch.IsWritable() {
		t.Error("Expected scratch.out to be write-only")
	}
	if weather.TopicAddress() != "stream.weather.greenbox" || weather.Partitions != 3 {
		t.Errorf("Unexpected weather topic %+v", weather)
	}
}

func TestLoadTopicsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		code  string
	}{
		{
			name:  "invalid id",
			files: map[string]string{"a.yaml": "topics: [{id: Weather, label: W}]"},
			code:  engine.ErrCodeInvalidConfig,
		},
		{
			name:  "duplicate within file",
			files: map[string]string{"a.yaml": "topics: [{id: a, label: A}, {id: a, label: B}]"},
			code:  engine.ErrCodeDuplicate,
		},
		{
			name: "duplicate across files",
			files: map[string]string{
				"a.yaml": "topics: [{id: a, label: A}]",
				"b.yaml": "topics: [{id: a, label: B}]",
			},
			code: engine.ErrCodeDuplicate,
		},
		{
			name:  "missing label",
			files: map[string]string{"a.yaml": "topics: [{id: a}]"},
			code:  engine.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := NewLoader().LoadTopics(dir)
			if !engine.IsConfig(err) {
				t.Fatalf("Expected config error, got %v", err)
			}
			if got := engine.CodeOf(err); got != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, got)
			}
		})
	}
}
