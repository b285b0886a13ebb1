package firealert

import "errors"

// Domain-specific errors for fire alert persistence.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDetectorNotFound is returned when an operation targets a
	// detector that has never reported.
	ErrDetectorNotFound = errors.New("firealert: detector not found")
)
