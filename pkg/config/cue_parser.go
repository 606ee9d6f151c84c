package config

import (
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CUEParser evaluates CUE configuration files against the built-in schemas
// and exports them as JSON, which the YAML decoder reads like any other file.
type CUEParser struct {
	mu      sync.Mutex
	schemas *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser(schemas *SchemaRegistry) *CUEParser {
	return &CUEParser{schemas: schemas}
}

// Export compiles content, unifies it with schema and returns the result as JSON.
func (cp *CUEParser) Export(path string, content []byte, schema string) ([]byte, error) {
	// cue.Context is not safe for concurrent use
	cp.mu.Lock()
	defer cp.mu.Unlock()

	val := cp.schemas.Context().CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(path, err)
	}

	unified, err := cp.schemas.Unify(schema, val)
	if err != nil {
		return nil, convertCUEErrors(path, err)
	}

	data, err := unified.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(path, err)
	}
	return data, nil
}

// convertCUEErrors converts CUE errors to positioned file errors.
func convertCUEErrors(path string, err error) error {
	var fileErrors []error

	for _, e := range cueerrors.Errors(err) {
		fe := &FileError{
			File:    path,
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			if name := pos[0].Filename(); name != "" {
				fe.File = name
			}
			fe.Line = pos[0].Line()
			fe.Column = pos[0].Column()
		}
		fileErrors = append(fileErrors, fe)
	}

	if len(fileErrors) == 0 {
		return &FileError{File: path, Message: fmt.Sprint(err)}
	}
	return errors.Join(fileErrors...)
}
