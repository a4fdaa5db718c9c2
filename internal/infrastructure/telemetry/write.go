package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHeartbeat records a controller heartbeat for a locker.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - lockerID: Logical locker identifier (e.g., "bank-07A")
//   - uptimeSeconds: Controller uptime reported in the heartbeat
//   - online: Whether the locker is considered online
func (c *Client) WriteHeartbeat(lockerID string, uptimeSeconds int64, online bool) {
	if !c.IsConnected() {
		return
	}

	onlineVal := 0
	if online {
		onlineVal = 1
	}

	point := write.NewPoint(
		"locker_heartbeat",
		map[string]string{
			"locker_id": lockerID,
		},
		map[string]interface{}{
			"uptime_seconds": uptimeSeconds,
			"online":         onlineVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccessEvent records an RFID access decision.
//
// Parameters:
//   - lockerID: Locker involved in the decision (may be empty for denials)
//   - action: Decision tag (unlock-assigned, auto-assign, access-denied, ...)
func (c *Client) WriteAccessEvent(lockerID, action string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"action": action,
	}
	if lockerID != "" {
		tags["locker_id"] = lockerID
	}

	point := write.NewPoint(
		"access_events",
		tags,
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
