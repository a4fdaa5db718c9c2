package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Wrap with fmt.Errorf("%w: details") and check with errors.Is.
var (
	// ErrNotConnected indicates an operation was attempted while disconnected.
	// Publishing while disconnected fails fast with this error rather than
	// queueing or silently dropping the message.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed indicates a publish operation failed.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscribe operation failed.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed indicates an unsubscribe operation failed.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS indicates an invalid QoS level was specified.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic indicates an invalid topic string.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge indicates a publish payload exceeded the size limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
