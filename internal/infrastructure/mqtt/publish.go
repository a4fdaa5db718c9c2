package mqtt

import (
	"fmt"
	"strings"
)

// maxPayloadSize is the maximum allowed outbound payload (1 MB).
// Command payloads are tiny; anything near this limit is a bug upstream.
const maxPayloadSize = 1024 * 1024

// Publish sends a message to the specified topic.
//
// If the client is disconnected, this fails fast with ErrNotConnected
// rather than queueing the message. Callers that care (the command
// dispatcher, the HTTP layer) surface this to their own callers.
//
// Parameters:
//   - topic: Destination topic (no wildcards)
//   - payload: Message payload bytes
//   - qos: Quality of service (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrNotConnected, ErrInvalidTopic, ErrInvalidQoS,
//     ErrPayloadTooLarge, ErrTimeout, or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return fmt.Errorf("%w: cannot publish to %s", ErrNotConnected, topic)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: publish to %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}

// PublishString publishes a string payload at the configured QoS.
func (c *Client) PublishString(topic, payload string) error {
	return c.Publish(topic, []byte(payload), byte(c.cfg.QoS), false)
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// validatePublishTopic checks that a topic is valid for publishing.
// Publish topics must not contain wildcard characters.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
