package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorClass classifies an error so callers can branch on the kind of
// failure rather than on message text.
type ErrorClass string

const (
	// ErrorClassValidation indicates malformed input: an invalid identifier,
	// an unresolved or unknown placeholder, or a junction/resource mismatch.
	// Always detected before any remote call.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassNotFound indicates an unknown realization, resource, profile
	// or deployed service.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassRemote indicates the platform client failed (authentication,
	// network or platform-side rejection). Never retried by this module.
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassConfig indicates invalid static configuration. Fatal to
	// registry construction.
	ErrorClassConfig ErrorClass = "config"
)

// Common error codes.
const (
	ErrCodeInvalidIdentifier   = "INVALID_IDENTIFIER"
	ErrCodeInvalidTemplate     = "INVALID_TEMPLATE"
	ErrCodeUnknownJunction     = "UNKNOWN_JUNCTION"
	ErrCodeIncompatible        = "INCOMPATIBLE_RESOURCE"
	ErrCodeCardinality         = "JUNCTION_CARDINALITY"
	ErrCodeInvalidParameter    = "INVALID_PARAMETER"
	ErrCodeProfileRequired     = "PROFILE_REQUIRED"
	ErrCodeRealizationNotFound = "REALIZATION_NOT_FOUND"
	ErrCodeResourceNotFound    = "RESOURCE_NOT_FOUND"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeServiceNotFound     = "SERVICE_NOT_FOUND"
	ErrCodeClient              = "CLIENT_FAILED"
	ErrCodeAuthentication      = "AUTHENTICATION_FAILED"
	ErrCodeInvalidConfig       = "INVALID_CONFIG"
	ErrCodeDuplicate           = "DUPLICATE"
	ErrCodePolicyViolation     = "POLICY_VIOLATION"
)

// Error is a classified error with enough context to be actionable.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Subject names the identifiers involved (e.g. "service=pipeline1-filter1").
	Subject map[string]string `json:"subject,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	var ctx []string
	if e.Operation != "" {
		ctx = append(ctx, "operation="+e.Operation)
	}
	if len(e.Subject) > 0 {
		keys := make([]string, 0, len(e.Subject))
		for k := range e.Subject {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ctx = append(ctx, k+"="+e.Subject[k])
		}
	}
	if len(ctx) > 0 {
		sb.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classification returns the class name for telemetry labels.
func (e *Error) Classification() string {
	return string(e.Class)
}

// Is matches another *Error with the same class and, when the target has one, the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *Error {
	return &Error{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewRemoteError creates a new remote error.
func NewRemoteError(message string, err error) *Error {
	return &Error{Class: ErrorClassRemote, Message: message, Err: err}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ErrorClassConfig, Message: message, Err: err}
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithSubject records an identifier involved in the failure.
func (e *Error) WithSubject(key string, value fmt.Stringer) *Error {
	return e.WithSubjectString(key, value.String())
}

// WithSubjectString records an identifier involved in the failure.
func (e *Error) WithSubjectString(key, value string) *Error {
	if e.Subject == nil {
		e.Subject = make(map[string]string)
	}
	e.Subject[key] = value
	return e
}

// ClassOf returns the class of the first *Error in err's chain, or "".
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return ClassOf(err) == ErrorClassValidation
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return ClassOf(err) == ErrorClassNotFound
}

// IsRemote returns true if the error is classified as remote.
func IsRemote(err error) bool {
	return ClassOf(err) == ErrorClassRemote
}

// IsConfig returns true if the error is classified as a configuration error.
func IsConfig(err error) bool {
	return ClassOf(err) == ErrorClassConfig
}
