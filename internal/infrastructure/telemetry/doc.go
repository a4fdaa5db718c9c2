// Package telemetry writes locker fleet metrics to InfluxDB.
//
// Heartbeat uptime and access decisions are recorded as batched,
// non-blocking points. The whole package is optional: when disabled in
// config, Connect returns ErrDisabled and the engine runs without it.
package telemetry
