package tsdb

import "errors"

// Domain-specific errors for the telemetry mirror.
var (
	// ErrDisabled is returned by Connect when the mirror is off in config.
	ErrDisabled = errors.New("tsdb: influxdb mirror disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrNotConnected is returned when operating on a closed client.
	ErrNotConnected = errors.New("tsdb: client not connected")
)
