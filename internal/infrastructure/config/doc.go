// Package config loads and validates LockerHub Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded
// defaults, and finally overridden by LOCKERHUB_* environment
// variables. The engine section carries the locker-assignment
// tunables (assignment TTL, offline threshold, sweep intervals,
// unlock delays).
package config
