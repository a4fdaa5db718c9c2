// Package engine implements the locker-assignment engine: the topic
// router, heartbeat auto-discovery, the RFID access state machine, the
// command dispatcher, and the expiry and offline sweeps.
//
// All inbound device traffic flows through HandleMessage. State
// mutations that read-then-write a locker and its counterpart member
// are serialized per locker ID with a keyed mutex, so concurrent scans
// for the same door and sweeps racing a scan cannot interleave.
// Decisions are persisted before the corresponding command is
// published; device publishes are fire-and-forget.
package engine
