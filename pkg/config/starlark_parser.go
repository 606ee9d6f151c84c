package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// StarlarkGlobal is the global a Starlark configuration file assigns its
// document to.
const StarlarkGlobal = "config"

// DefaultStarlarkTimeout bounds the evaluation of one file.
const DefaultStarlarkTimeout = 5 * time.Second

// maxStarlarkSteps bounds the work of one file independently of wall time.
const maxStarlarkSteps = 10_000_000

// StarlarkParser evaluates Starlark configuration files and exports the value
// of their config global as JSON. Scripts see no filesystem, network or
// environment; load statements are rejected.
//
//	def topic(name):
//	    return {"id": "stream." + name, "label": name.title()}
//
//	config = {"topics": [topic(n) for n in ["weather", "alerts"]]}
type StarlarkParser struct {
	timeout time.Duration
}

// NewStarlarkParser creates a parser. A zero timeout means DefaultStarlarkTimeout.
func NewStarlarkParser(timeout time.Duration) *StarlarkParser {
	if timeout == 0 {
		timeout = DefaultStarlarkTimeout
	}
	return &StarlarkParser{timeout: timeout}
}

// Export executes content and returns the config global as JSON.
func (sp *StarlarkParser) Export(path string, content []byte) ([]byte, error) {
	thread := &starlark.Thread{
		Name: path,
		Print: func(_ *starlark.Thread, msg string) {
			log.Debug().Str("file", path).Msg(msg)
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load of %q is not allowed", module)
		},
	}
	thread.SetMaxExecutionSteps(maxStarlarkSteps)

	timer := time.AfterFunc(sp.timeout, func() {
		thread.Cancel(fmt.Sprintf("evaluation exceeded %v", sp.timeout))
	})
	defer timer.Stop()

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}

	globals, err := starlark.ExecFile(thread, path, content, predeclared)
	if err != nil {
		return nil, convertStarlarkError(path, err)
	}

	value, ok := globals[StarlarkGlobal]
	if !ok {
		return nil, &FileError{File: path, Message: fmt.Sprintf("script does not define '%s'", StarlarkGlobal)}
	}
	doc, err := fromStarlarkValue(value)
	if err != nil {
		return nil, &FileError{File: path, Message: fmt.Sprintf("%s: %v", StarlarkGlobal, err)}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &FileError{File: path, Message: err.Error()}
	}
	return data, nil
}

// convertStarlarkError converts Starlark errors to positioned file errors.
func convertStarlarkError(path string, err error) error {
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return &FileError{
			File:    path,
			Line:    int(syntaxErr.Pos.Line),
			Column:  int(syntaxErr.Pos.Col),
			Message: syntaxErr.Msg,
		}
	}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		fileErrors := make([]error, len(resolveErrs))
		for i, e := range resolveErrs {
			fileErrors[i] = &FileError{
				File:    path,
				Line:    int(e.Pos.Line),
				Column:  int(e.Pos.Col),
				Message: e.Msg,
			}
		}
		return errors.Join(fileErrors...)
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		fe := &FileError{File: path, Message: evalErr.Msg}
		if n := len(evalErr.CallStack); n > 0 {
			pos := evalErr.CallStack[n-1].Pos
			fe.Line = int(pos.Line)
			fe.Column = int(pos.Col)
		}
		return fe
	}

	return &FileError{File: path, Message: err.Error()}
}

// fromStarlarkValue converts a Starlark value to a JSON-compatible Go value.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromStarlarkSequence(val)
	case starlark.Tuple:
		return fromStarlarkSequence(val)
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", item[0])
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
	}
}

func fromStarlarkSequence(seq starlark.Indexable) ([]any, error) {
	list := make([]any, seq.Len())
	for i := range seq.Len() {
		item, err := fromStarlarkValue(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		list[i] = item
	}
	return list, nil
}
