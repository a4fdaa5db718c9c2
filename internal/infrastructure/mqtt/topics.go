package mqtt

import "strings"

// Topic structure constants.
const (
	// systemPrefix is the namespace for Core's own status messages.
	systemPrefix = "lockerhub/system"

	// commandSuffix is the sub-channel lockers listen on for commands.
	commandSuffix = "cmd"
)

// Topics builds MQTT topic strings for the LockerHub namespace.
//
// Locker controllers publish on their own base topic plus a sub-channel
// (sync, send, cmd). Core publishes commands to <base>/cmd and its own
// lifecycle status to lockerhub/system/status.
//
// Usage:
//
//	t := mqtt.Topics{}
//	client.Publish(t.DeviceCommand("gym/bank-07"), payload, 1, false)
type Topics struct{}

// SystemStatus returns the topic for Core online/offline status and LWT.
func (Topics) SystemStatus() string {
	return systemPrefix + "/status"
}

// DeviceWildcard returns the subscription filter covering all device
// traffic. Controllers choose their own base topics, so Core subscribes
// broadly and lets the router classify.
func (Topics) DeviceWildcard() string {
	return "#"
}

// DeviceCommand returns the command topic for a locker's base topic.
func (Topics) DeviceCommand(base string) string {
	return base + "/" + commandSuffix
}

// IsSystemTopic reports whether a topic belongs to Core's own namespace.
// The router uses this to skip Core's status messages echoed back by
// the broad device subscription.
func (Topics) IsSystemTopic(topic string) bool {
	return strings.HasPrefix(topic, systemPrefix+"/")
}

// SplitDeviceTopic splits a device topic into its base (controller
// identity) and action (sub-channel). The action is the final topic
// segment; everything before it is the base.
//
// A single-segment topic has no action and is returned as base only.
func SplitDeviceTopic(topic string) (base, action string) {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 {
		return topic, ""
	}
	return topic[:idx], topic[idx+1:]
}
