package engine

import (
	"context"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/activity"
)

// RunOfflineSweep flips every online locker whose last heartbeat is
// older than the silence threshold to offline, and emits one batch
// notification for the presentation layer. Assignment state is never
// touched here. Re-entry is refused if a previous sweep is running.
func (e *Engine) RunOfflineSweep(ctx context.Context) {
	if !e.offlineRunning.CompareAndSwap(false, true) {
		e.logger.Debug("offline sweep still running, skipping")
		return
	}
	defer e.offlineRunning.Store(false)

	threshold := time.Now().UTC().Add(-e.cfg.OfflineAfter())

	lockers, err := e.lockers.ListLockers(ctx)
	if err != nil {
		e.logger.Error("listing lockers failed", "error", err)
		return
	}

	var names []string
	for i := range lockers {
		l := lockers[i]
		if !l.Online {
			continue
		}
		// A locker that never sent a heartbeat but is marked online is
		// stale by definition.
		if l.LastHeartbeatAt != nil && l.LastHeartbeatAt.After(threshold) {
			continue
		}

		if err := e.lockers.SetOnline(ctx, l.ID, false); err != nil {
			e.logger.Warn("marking locker offline failed", "locker", l.Name, "error", err)
			continue
		}
		e.telemetry.WriteHeartbeat(l.ID, l.UptimeSeconds, false)
		names = append(names, l.Name)
	}

	if len(names) == 0 {
		return
	}

	e.logger.Info("lockers went offline", "count", len(names), "names", names)
	e.logActivity(ctx, &activity.Entry{
		Action:  activity.ActionOfflineBatch,
		Details: map[string]any{"count": len(names), "names": names},
	})
	e.notifier.Notify(EventOfflineBatch, map[string]any{
		"count": len(names),
		"names": names,
	})
}
