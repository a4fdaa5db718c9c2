package telemetry

import "errors"

// Sentinel errors for telemetry operations.
var (
	// ErrDisabled indicates telemetry is disabled in configuration.
	// Callers should treat this as "run without telemetry".
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed indicates the InfluxDB connection could not be established.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("telemetry: not connected")
)
