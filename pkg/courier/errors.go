package courier

import (
	"errors"
	"reflect"
	"time"
)

var (
	// ErrNilHandler is returned by Subscribe when the handler is nil.
	ErrNilHandler = errors.New("courier: subscribe called with nil handler")

	// ErrNilMessage is returned by Publish when the message is nil.
	ErrNilMessage = errors.New("courier: publish called with nil message")
)

// Fault stage constants.
const (
	StageFilter  = "filter"
	StageHandler = "handler"
)

// Fault describes a panic recovered inside a subscriber's filter or
// handler during delivery. Faults never propagate to the publisher; they
// are surfaced only through Config.OnFault.
type Fault struct {
	// Stage is where the panic occurred: StageFilter or StageHandler.
	Stage string

	// MessageType is the message type being delivered.
	MessageType reflect.Type

	// SubscriptionID identifies the faulting subscription.
	SubscriptionID string

	// Err carries the recovered panic value.
	Err error

	// Timestamp is when the fault was recovered.
	Timestamp time.Time
}
