// Package coordination provides standardized error kinds for the request
// state machine.
package coordination

import (
	"errors"
)

// Structural errors: the only failures surfaced to callers. Everything
// below them — provider failures, cache trouble, persistence write failures
// — is recovered or logged inside the flow.
var (
	// ErrIntentUnresolved is returned when the intent router cannot
	// classify the raw input.
	ErrIntentUnresolved = errors.New("intent could not be resolved")
	// ErrUnknownIntent is returned when no workflow is registered for the
	// classified intent.
	ErrUnknownIntent = errors.New("unknown intent")
)

// IsStructural reports whether an error is a structural failure of the
// coordination flow rather than a recovered step failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrIntentUnresolved) || errors.Is(err, ErrUnknownIntent)
}
