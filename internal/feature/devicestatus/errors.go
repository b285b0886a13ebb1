package devicestatus

import "errors"

// Domain-specific errors for device status persistence.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when an operation targets a device
	// the owner has never connected.
	ErrDeviceNotFound = errors.New("devicestatus: device not found")

	// ErrComponentNotFound is returned when an operation targets a
	// component that has never reported.
	ErrComponentNotFound = errors.New("devicestatus: component not found")

	// ErrNoReadings is returned when a component exists but has logged
	// no values yet.
	ErrNoReadings = errors.New("devicestatus: no readings logged")
)
