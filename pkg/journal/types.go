package journal

import (
	"time"

	"github.com/openfroyo/junction/pkg/engine"
)

// Action is the lifecycle operation an entry records.
type Action string

const (
	ActionDeploy   Action = "deploy"
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionUndeploy Action = "undeploy"
)

// Outcome is how an operation ended.
type Outcome string

const (
	// OutcomeAccepted means the platform accepted the request.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeNotFound means the service did not exist.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeRejected means the request failed validation or admission and
	// never reached the platform.
	OutcomeRejected Outcome = "rejected"

	// OutcomeFailed means the request was sent and failed.
	OutcomeFailed Outcome = "failed"
)

// Entry is one recorded operation.
type Entry struct {
	ID         string             `json:"id" yaml:"id"`
	RecordedAt time.Time          `json:"recorded-at" yaml:"recorded-at"`
	Platform   string             `json:"platform" yaml:"platform"`
	Tenant     string             `json:"tenant" yaml:"tenant"`
	Service    string             `json:"service" yaml:"service"`
	Processor  string             `json:"processor" yaml:"processor"`
	Instance   string             `json:"instance" yaml:"instance"`
	Pipeline   *string            `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Action     Action             `json:"action" yaml:"action"`
	Outcome    Outcome            `json:"outcome" yaml:"outcome"`
	ErrorClass *engine.ErrorClass `json:"error-class,omitempty" yaml:"error-class,omitempty"`
	Error      *string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Filter selects entries. Empty fields match everything.
type Filter struct {
	Platform string
	Tenant   string
	Service  string

	// Limit caps the number of entries. Zero means DefaultLimit.
	Limit int
}

// DefaultLimit is the number of entries List returns when no limit is set.
const DefaultLimit = 50

// outcomeOf classifies the result of an operation. found is ignored when
// err is set.
func outcomeOf(found bool, err error) Outcome {
	switch {
	case err == nil && found:
		return OutcomeAccepted
	case err == nil:
		return OutcomeNotFound
	case engine.IsValidation(err), engine.IsNotFound(err):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
