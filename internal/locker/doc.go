// Package locker provides locker and group types, persistence, and the
// cached registry.
//
// The Registry wraps a Repository with an in-memory cache so the MQTT
// message path (topic and door lookups) never blocks on SQLite. Door
// identifiers follow the bank suffix convention: one controller hosts
// compartments "{base}A" and "{base}B"; DoorRef parses and matches
// them structurally.
package locker
