package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// handleHeartbeat processes a controller heartbeat: auto-discovery of
// missing compartments plus liveness refresh of existing ones.
//
// The derived logical names ({base}A, {base}B) make replay idempotent:
// an identical heartbeat finds its lockers by name and never creates
// duplicates.
func (e *Engine) handleHeartbeat(ctx context.Context, msg *Message, hb heartbeatPayload) {
	now := time.Now().UTC()
	names := locker.BankLockerNames(hb.Base, hb.LockCount)

	for i, name := range names {
		existing, err := e.lockers.GetLockerByName(ctx, name)
		switch {
		case err == nil:
			if err := e.lockers.RecordHeartbeat(ctx, existing.ID, hb.IP, hb.Uptime, now); err != nil {
				e.logger.Warn("recording heartbeat failed",
					"locker", name, "error", err)
				continue
			}
			e.telemetry.WriteHeartbeat(existing.ID, hb.Uptime, true)

		case errors.Is(err, locker.ErrLockerNotFound):
			e.discoverLocker(ctx, msg, hb, name, i+1, now)

		default:
			e.logger.Warn("heartbeat lookup failed", "locker", name, "error", err)
		}
	}

	e.notifier.Notify(EventHeartbeat, map[string]any{
		"hostname": hb.Hostname,
		"ip":       hb.IP,
		"uptime":   hb.Uptime,
		"lockers":  names,
	})
}

// discoverLocker creates a compartment observed for the first time.
func (e *Engine) discoverLocker(ctx context.Context, msg *Message, hb heartbeatPayload, name string, lockIndex int, now time.Time) {
	l := &locker.Locker{
		ID:              newID("lkr"),
		Name:            name,
		IPAddress:       hb.IP,
		Topic:           msg.Base,
		LockIndex:       lockIndex,
		Status:          locker.StatusAvailable,
		Online:          true,
		LastHeartbeatAt: &now,
		UptimeSeconds:   hb.Uptime,
		Metadata:        map[string]any{"auto_discovered": true},
	}

	if err := e.lockers.CreateLocker(ctx, l); err != nil {
		// A concurrent heartbeat may have won the race; replay stays idempotent.
		if errors.Is(err, locker.ErrLockerExists) {
			return
		}
		e.logger.Warn("auto-discovery failed", "name", name, "error", err)
		return
	}

	e.logger.Info("locker discovered", "name", name, "ip", hb.IP, "topic", msg.Base)
	e.logActivity(ctx, &activity.Entry{
		LockerID: l.ID,
		Action:   activity.ActionLockerDiscovered,
		Details:  map[string]any{"name": name, "ip": hb.IP, "hostname": hb.Hostname},
	})
	e.notifier.Notify(EventLockerCreated, l)
	e.telemetry.WriteHeartbeat(l.ID, hb.Uptime, true)
}
