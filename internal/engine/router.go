package engine

import (
	"context"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// Router actions understood by the status processor.
const (
	actionSync = "sync"
	actionSend = "send"
	actionCmd  = "cmd"
)

// HandleMessage classifies an inbound device message and dispatches it.
//
// Classification order, first match wins: heartbeat, known-locker
// status, sync auto-discovery. Access events are matched independently
// of topic resolution because RFID routing is door-name based.
// Unmatched messages are logged for observability only; malformed or
// oversized payloads are discarded without error.
func (e *Engine) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	topics := mqtt.Topics{}
	if topics.IsSystemTopic(topic) {
		return nil
	}

	if e.cfg.MaxPayloadBytes > 0 && len(payload) > e.cfg.MaxPayloadBytes {
		e.logger.Warn("oversized payload discarded",
			"topic", topic, "bytes", len(payload))
		return nil
	}

	base, action := mqtt.SplitDeviceTopic(topic)
	msg := &Message{
		Topic:   topic,
		Base:    base,
		Action:  action,
		Payload: decodePayload(payload),
	}

	// 1. Heartbeats carry their own type marker.
	if hb, ok := parseHeartbeat(msg.Payload); ok {
		e.handleHeartbeat(ctx, msg, hb)
		return nil
	}

	// 2. Known-controller traffic goes through the status processor.
	routed := false
	if resolved := e.lockers.FindByTopic(base); len(resolved) > 0 {
		e.handleStatus(ctx, msg, resolved)
		routed = true
	} else if action == actionSync && stringField(msg.Payload, "doorip") != "" {
		// 3. Unresolved sync with a device IP: single-lock discovery.
		e.handleSyncDiscovery(ctx, msg)
		routed = true
	}

	// 4. Access events route by door name, not by topic.
	if ev, ok := parseAccessEvent(msg.Payload); ok {
		e.handleAccess(ctx, ev)
		return nil
	}

	if !routed {
		e.logger.Debug("unrouted message", "topic", topic)
	}
	return nil
}

// handleStatus processes sync/send/cmd traffic from known controllers:
// online marking, status transitions from the payload cmd field, and
// access-log recording.
func (e *Engine) handleStatus(ctx context.Context, msg *Message, resolved []locker.Locker) {
	// Any traffic from the controller proves it alive.
	for i := range resolved {
		if !resolved[i].Online {
			if err := e.lockers.SetOnline(ctx, resolved[i].ID, true); err != nil {
				e.logger.Warn("marking locker online failed",
					"locker", resolved[i].Name, "error", err)
			}
		}
	}

	switch stringField(msg.Payload, "cmd") {
	case "maintenance":
		e.setResolvedStatus(ctx, resolved, locker.StatusMaintenance)
	case "normal":
		e.setResolvedStatus(ctx, resolved, locker.StatusAvailable)
	case "log":
		// Non-access log records are kept for auditing; access records
		// are classified separately by the router.
		if stringField(msg.Payload, "type") != "access" {
			e.logActivity(ctx, &activity.Entry{
				LockerID: resolved[0].ID,
				Action:   activity.ActionHeartbeat,
				Details:  msg.Payload,
			})
		}
	case "openlock":
		// Command echo from our own dispatch.
		e.logger.Debug("command echo", "topic", msg.Topic)
	default:
		e.logger.Debug("controller status", "topic", msg.Topic, "action", msg.Action)
	}
}

// setResolvedStatus applies a maintenance/normal transition to the
// controller's lockers. Occupied lockers are left alone: assignment
// state belongs to the access processor and the sweeps.
func (e *Engine) setResolvedStatus(ctx context.Context, resolved []locker.Locker, status locker.Status) {
	for i := range resolved {
		l := resolved[i]
		if l.Status == locker.StatusOccupied || l.Status == status {
			continue
		}

		unlock := e.locks.Lock(l.ID)
		current, err := e.lockers.GetLocker(ctx, l.ID)
		if err == nil && current.Status != locker.StatusOccupied {
			current.Status = status
			if err := e.lockers.UpdateLocker(ctx, current); err != nil {
				e.logger.Warn("status transition failed",
					"locker", current.Name, "status", status, "error", err)
			} else {
				e.notifier.Notify(EventLockerUpdated, current)
			}
		}
		unlock()
	}
}

// handleSyncDiscovery creates exactly one locker keyed by the raw
// topic identity when no heartbeat has been seen for it yet.
func (e *Engine) handleSyncDiscovery(ctx context.Context, msg *Message) {
	name := msg.Base
	if _, err := e.lockers.GetLockerByName(ctx, name); err == nil {
		return
	}

	lockIndex := 1
	if n, ok := intField(msg.Payload, "lock"); ok && n > 0 {
		lockIndex = n
	}

	l := &locker.Locker{
		ID:        newID("lkr"),
		Name:      name,
		IPAddress: stringField(msg.Payload, "doorip"),
		Topic:     msg.Base,
		LockIndex: lockIndex,
		Status:    locker.StatusAvailable,
		Online:    true,
		Metadata:  map[string]any{"auto_discovered": true},
	}

	if err := e.lockers.CreateLocker(ctx, l); err != nil {
		e.logger.Warn("sync discovery failed", "name", name, "error", err)
		return
	}

	e.logger.Info("locker discovered via sync", "name", name, "ip", l.IPAddress)
	e.logActivity(ctx, &activity.Entry{
		LockerID: l.ID,
		Action:   activity.ActionLockerDiscovered,
		Details:  map[string]any{"name": l.Name, "ip": l.IPAddress, "via": "sync"},
	})
	e.notifier.Notify(EventLockerCreated, l)
}
