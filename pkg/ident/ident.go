// Package ident provides pattern-validated identifiers.
//
// Every entity name that crosses a trust boundary (junctions, processors,
// parameters, profiles, resources, pipelines, tasks, services, tenants) is
// represented by an ID parameterized with a kind marker. The kind supplies
// the tag, description and pattern; ID supplies parsing, comparison and
// string conversion once for all kinds.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec describes one identifier kind.
type Spec struct {
	// Tag is the domain tag used in error messages and logs (e.g. "junction").
	Tag string

	// Description is the human readable noun used in error messages.
	Description string

	// Pattern is the full-match pattern the raw value must satisfy.
	Pattern *regexp.Regexp

	// Valid is an example value that satisfies Pattern.
	Valid string

	// Invalid is an example value that does not satisfy Pattern.
	Invalid string
}

// Kind is implemented by the marker types that instantiate ID.
type Kind interface {
	Spec() Spec
}

// ID is an immutable identifier whose value matched its kind's pattern at
// construction. The zero value is the empty, invalid identifier.
type ID[K Kind] struct {
	value string
}

// ValidationError reports a raw value that does not satisfy an identifier pattern.
type ValidationError struct {
	Tag         string
	Value       string
	Description string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("'%s' is not a valid %s", e.Value, e.Description)
}

// Parse validates raw against the pattern of kind K.
func Parse[K Kind](raw string) (ID[K], error) {
	var kind K
	spec := kind.Spec()
	if !spec.Pattern.MatchString(raw) {
		return ID[K]{}, &ValidationError{
			Tag:         spec.Tag,
			Value:       raw,
			Description: spec.Description,
		}
	}
	return ID[K]{value: raw}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for
// constants and tests.
func MustParse[K Kind](raw string) ID[K] {
	id, err := Parse[K](raw)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseAll parses every raw value, failing on the first invalid one.
func ParseAll[K Kind](raws []string) ([]ID[K], error) {
	ids := make([]ID[K], 0, len(raws))
	for _, raw := range raws {
		id, err := Parse[K](raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// String returns the raw value.
func (id ID[K]) String() string {
	return id.value
}

// IsZero reports whether id is the zero value.
func (id ID[K]) IsZero() bool {
	return id.value == ""
}

// Compare orders identifiers by raw value.
func (id ID[K]) Compare(other ID[K]) int {
	return strings.Compare(id.value, other.value)
}

// Tag returns the domain tag of the identifier kind.
func (id ID[K]) Tag() string {
	var kind K
	return kind.Spec().Tag
}

// MarshalText implements encoding.TextMarshaler.
func (id ID[K]) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, validating the value.
func (id *ID[K]) UnmarshalText(text []byte) error {
	parsed, err := Parse[K](string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
