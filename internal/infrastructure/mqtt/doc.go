// Package mqtt provides the MQTT transport for LockerHub Core.
//
// It wraps eclipse/paho.mqtt.golang with connection management,
// Last Will and Testament, automatic reconnection with exponential
// backoff, and subscription restoration after reconnect.
//
// Core subscribes broadly to device traffic and publishes locker
// commands on the per-device <base>/cmd channel. Publishing while
// disconnected fails fast with ErrNotConnected so callers can react
// instead of losing commands silently.
package mqtt
