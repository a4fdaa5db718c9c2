package engine

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// Message is a decoded inbound device message.
type Message struct {
	// Topic is the full topic the message arrived on.
	Topic string

	// Base is the controller identity (topic without the action segment).
	Base string

	// Action is the sub-channel: sync, send, cmd.
	Action string

	// Payload is the decoded JSON document. Non-JSON payloads are
	// wrapped as {"raw": "<text>"} so they still route for logging but
	// never match a structured classifier.
	Payload map[string]any
}

// decodePayload decodes a JSON payload, falling back to the raw wrapper.
func decodePayload(payload []byte) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return map[string]any{"raw": string(payload)}
	}
	return doc
}

// stringField extracts a string field from a decoded payload.
// Numeric values are formatted; missing or other types yield "".
func stringField(doc map[string]any, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// intField extracts an integer field from a decoded payload.
// JSON numbers arrive as float64; numeric strings are parsed too.
func intField(doc map[string]any, key string) (int, bool) {
	switch v := doc[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// boolishField interprets loosely-typed controller booleans: real JSON
// booleans plus the string spellings the firmware uses.
func boolishField(doc map[string]any, key string, truthy ...string) bool {
	switch v := doc[key].(type) {
	case bool:
		return v
	case string:
		lowered := strings.ToLower(strings.TrimSpace(v))
		for _, t := range truthy {
			if lowered == t {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// heartbeatPayload is the parsed form of a controller heartbeat:
// {type:"heartbeat", controllertype:"locker", hostname, ip, uptime, numlocks?}.
type heartbeatPayload struct {
	Hostname  string
	IP        string
	Uptime    int64
	Base      string
	LockCount int
}

// parseHeartbeat extracts and validates a heartbeat payload.
//
// The controller hostname carries the bank base and lock count as
// "{base}-{lockCount}" (e.g. "F1-2" hosts F1A and F1B). An explicit
// numlocks field wins over the hostname suffix.
func parseHeartbeat(doc map[string]any) (heartbeatPayload, bool) {
	if stringField(doc, "type") != "heartbeat" {
		return heartbeatPayload{}, false
	}

	hb := heartbeatPayload{
		Hostname: strings.TrimSpace(stringField(doc, "hostname")),
		IP:       stringField(doc, "ip"),
	}
	if hb.Hostname == "" || hb.IP == "" {
		return heartbeatPayload{}, false
	}

	if uptime, ok := intField(doc, "uptime"); ok {
		hb.Uptime = int64(uptime)
	}

	hb.Base = hb.Hostname
	hb.LockCount = 1
	if idx := strings.LastIndex(hb.Hostname, "-"); idx > 0 {
		if n, err := strconv.Atoi(hb.Hostname[idx+1:]); err == nil {
			hb.Base = hb.Hostname[:idx]
			hb.LockCount = n
		}
	}
	if n, ok := intField(doc, "numlocks"); ok {
		hb.LockCount = n
	}

	return hb, true
}

// AccessEvent is a classified RFID access event: a scanned tag at a door.
type AccessEvent struct {
	// UID is the scanned tag identity.
	UID string

	// Door is the parsed reader location.
	Door locker.DoorRef

	// KnownTag is whether the controller recognised the tag.
	KnownTag bool

	// Denied is whether the controller denied access locally.
	Denied bool
}

// parseAccessEvent matches the two access-event shapes:
//
//	{cmd:"log", type:"access", uid, door, isKnown, access}
//	{cmd:"event", type:"WARN", src:"rfid", door, data:"<uid> <tag-type>"}
//
// In the warning shape the uid is the token before the first space of
// the data field; the controller emits it only for unknown, denied tags.
func parseAccessEvent(doc map[string]any) (AccessEvent, bool) {
	cmd := stringField(doc, "cmd")
	typ := stringField(doc, "type")

	if cmd == "log" && typ == "access" {
		if _, present := doc["uid"]; !present {
			return AccessEvent{}, false
		}
		granted := boolishField(doc, "access", "granted", "yes", "true", "1")
		return AccessEvent{
			UID:      strings.TrimSpace(stringField(doc, "uid")),
			Door:     locker.ParseDoorRef(stringField(doc, "door")),
			KnownTag: boolishField(doc, "isKnown", "yes", "true", "1"),
			Denied:   !granted,
		}, true
	}

	if cmd == "event" && typ == "WARN" && stringField(doc, "src") == "rfid" {
		data := strings.TrimSpace(stringField(doc, "data"))
		uid := data
		if idx := strings.Index(data, " "); idx >= 0 {
			uid = data[:idx]
		}
		return AccessEvent{
			UID:      uid,
			Door:     locker.ParseDoorRef(stringField(doc, "door")),
			KnownTag: false,
			Denied:   true,
		}, true
	}

	return AccessEvent{}, false
}
