// Package placeholder resolves and validates ${NAME} markers in configuration
// templates against a mapping built from the active platform and tenant.
package placeholder

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Placeholder is a symbolic substitution key. The set is closed.
type Placeholder string

const (
	ConsoleURL         Placeholder = "CONSOLE_URL"
	InternalDomain     Placeholder = "INTERNAL_DOMAIN"
	MonitoringURL      Placeholder = "MONITORING_URL"
	Platform           Placeholder = "PLATFORM"
	PublicVhostsDomain Placeholder = "PUBLIC_VHOSTS_DOMAIN"
	Random             Placeholder = "RANDOM"
	RandomUUID         Placeholder = "RANDOM_UUID"
	Realm              Placeholder = "REALM"
	RestAccessTokenURL Placeholder = "REST_ACCESS_TOKEN_URL"
	RestAPIURL         Placeholder = "REST_API_URL"
	Tenant             Placeholder = "TENANT"
	User               Placeholder = "USER"
)

var all = []Placeholder{
	ConsoleURL,
	InternalDomain,
	MonitoringURL,
	Platform,
	PublicVhostsDomain,
	Random,
	RandomUUID,
	Realm,
	RestAccessTokenURL,
	RestAPIURL,
	Tenant,
	User,
}

// markerPattern matches well-formed markers. Anything else is literal text.
var markerPattern = regexp.MustCompile(`\$\{([A-Z][A-Z0-9_]*)\}`)

// All returns every defined placeholder in a stable order.
func All() []Placeholder {
	return slices.Clone(all)
}

// Stable returns the placeholders whose value is fixed for a platform and
// tenant. Random and RandomUUID change with every mapping.
func Stable() []Placeholder {
	return slices.DeleteFunc(All(), func(p Placeholder) bool {
		return p == Random || p == RandomUUID
	})
}

// Parse returns the placeholder named by text.
func Parse(text string) (Placeholder, error) {
	p := Placeholder(text)
	if !slices.Contains(all, p) {
		return "", &UnknownError{Text: text}
	}
	return p, nil
}

// String returns the tag text.
func (p Placeholder) String() string {
	return string(p)
}

// Marker returns the template syntax for p, e.g. "${TENANT}".
func (p Placeholder) Marker() string {
	return "${" + string(p) + "}"
}

// Mapping is the substitution table for one resolution pass.
type Mapping map[Placeholder]string

// Keys returns the placeholders present in the mapping, sorted.
func (m Mapping) Keys() []Placeholder {
	keys := make([]Placeholder, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// UnresolvedError reports a defined placeholder that is absent from the mapping.
type UnresolvedError struct {
	Placeholder Placeholder
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder %s", e.Placeholder.Marker())
}

// UnknownError reports marker text that does not name a defined placeholder.
type UnknownError struct {
	Text string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown placeholder '%s'", e.Text)
}

// NotAllowedError reports a placeholder that is defined but not permitted in
// the template being validated.
type NotAllowedError struct {
	Placeholder Placeholder
	Allowed     []Placeholder
}

func (e *NotAllowedError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, p := range e.Allowed {
		allowed[i] = p.String()
	}
	return fmt.Sprintf("placeholder %s is not allowed here (allowed: %s)",
		e.Placeholder.Marker(), strings.Join(allowed, ", "))
}

// Resolve substitutes every marker in template with its value from mapping.
// Substituted values are not scanned again.
func Resolve(template string, mapping Mapping) (string, error) {
	matches := markerPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		p, err := Parse(template[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		value, ok := mapping[p]
		if !ok {
			return "", &UnresolvedError{Placeholder: p}
		}
		sb.WriteString(template[last:m[0]])
		sb.WriteString(value)
		last = m[1]
	}
	sb.WriteString(template[last:])
	return sb.String(), nil
}

// Validate checks that every well-formed marker in template names a
// placeholder in allowed.
func Validate(template string, allowed []Placeholder) error {
	for _, m := range markerPattern.FindAllStringSubmatch(template, -1) {
		p, err := Parse(m[1])
		if err != nil {
			return err
		}
		if !slices.Contains(allowed, p) {
			return &NotAllowedError{Placeholder: p, Allowed: allowed}
		}
	}
	return nil
}

// Placeholders returns the distinct placeholders referenced by template, in
// order of first appearance. Unknown marker text is reported as an error.
func Placeholders(template string) ([]Placeholder, error) {
	var found []Placeholder
	for _, m := range markerPattern.FindAllStringSubmatch(template, -1) {
		p, err := Parse(m[1])
		if err != nil {
			return nil, err
		}
		if !slices.Contains(found, p) {
			found = append(found, p)
		}
	}
	return found, nil
}
