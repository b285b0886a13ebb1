package feature

import "errors"

// Domain-specific errors for the feature bridge.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrExchangeClosed is returned when sending on a closed exchange,
	// or when the exchange closes while a response is outstanding.
	ErrExchangeClosed = errors.New("feature: exchange closed")

	// ErrRequestTimeout is returned when a command receives no response
	// within the configured window.
	ErrRequestTimeout = errors.New("feature: request timed out")

	// ErrMalformedMessage is returned when an inbound payload is not
	// valid UTF-8 JSON in the tagged envelope format.
	ErrMalformedMessage = errors.New("feature: malformed message")

	// ErrUnknownKind is returned when an envelope carries a tag no
	// handler recognises.
	ErrUnknownKind = errors.New("feature: unknown message kind")

	// ErrRegistrationFailed is returned when a feature pair cannot be
	// constructed at startup.
	ErrRegistrationFailed = errors.New("feature: registration failed")
)
