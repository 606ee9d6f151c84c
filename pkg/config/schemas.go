package config

import (
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema names.
const (
	SchemaProcessor = "#Processor"
	SchemaTopics    = "#Topics"
)

// SchemaRegistry holds the CUE definitions that CUE configuration files are
// unified with before they are decoded.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// Built-in schemas always compile
	if err := sr.RegisterSchemas(builtinSchemas); err != nil {
		panic(err)
	}

	return sr
}

// Context returns the CUE context shared by the schemas. Values unified with
// a schema must be built by this context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchemas compiles source and registers every definition it declares.
func (sr *SchemaRegistry) RegisterSchemas(source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schemas: %w", err)
	}

	iter, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return fmt.Errorf("failed to list schema definitions: %w", err)
	}
	for iter.Next() {
		if !iter.Selector().IsDefinition() {
			continue
		}
		sr.schemas[iter.Selector().String()] = iter.Value()
	}

	return nil
}

// GetSchema retrieves a schema by definition name, e.g. "#Processor".
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies val with the named schema and checks the result is concrete.
func (sr *SchemaRegistry) Unify(name string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", name)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}

	return unified, nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Built-in schema definitions. Field names follow the YAML layout.
const builtinSchemas = `
#EnvName: =~"^[A-Z_][A-Z0-9_]*$"

#Junction: {
	id:          string
	label:       string
	description?: string

	"allowed-resource-types": [..."topic"]

	minimum?: int & >=0
	maximum?: int & >=1

	"environment-variable"?: #EnvName
}

#Parameter: {
	id:           string
	kind:         "free-text" | "boolean" | "selection"
	label:        string
	description?: string
	optional?:    bool
	default?:     string
	options?: [...string]
}

#Profile: {
	id:           string
	label:        string
	description?: string
	instances:    int & >=1
	cpus:         number & >0
	mem:          int & >0
}

#Port: {
	auth?:     string
	mode?:     string
	protocol?: string
	vhost?:    string
}

#Service: {
	image:              string
	user?:              string
	"needs-token"?:     bool
	"single-instance"?: bool

	metrics?: {
		path: string
		port: int & >0 & <65536
	}

	"exposed-ports"?: [string]: #Port

	environment?: [#EnvName]: string | {parameter: string}
}

#Processor: {
	id:               string
	technology:       *"service" | string
	label:            string
	description?:     string
	version?:         string
	"more-info-url"?: string
	metadata?: [string]: string

	"inbound-junctions"?: [...#Junction]
	"outbound-junctions"?: [...#Junction]
	"deployment-parameters"?: [...#Parameter]

	profiles: [#Profile, ...#Profile]

	service?: #Service
}

#Topic: {
	id:           string
	label:        string
	description?: string
	address?:     string
	readable?:    bool
	writable?:    bool
	partitions?:  int & >=0
}

#Topics: {
	topics: [...#Topic]
}
`
