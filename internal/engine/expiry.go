package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// RunExpirySweep runs both reconciler passes: expiring overdue
// assignments and repairing orphaned lockers. Re-entry is refused if a
// previous sweep is still running. Per-entity failures are logged and
// the sweep continues with the next entity.
func (e *Engine) RunExpirySweep(ctx context.Context) {
	if !e.expiryRunning.CompareAndSwap(false, true) {
		e.logger.Debug("expiry sweep still running, skipping")
		return
	}
	defer e.expiryRunning.Store(false)

	e.expireOverdue(ctx)
	e.repairOrphans(ctx)
}

// expireOverdue clears every assignment whose validUntil has passed
// (pass 1). The registry state is persisted before deluser is
// published; the publish is best effort.
func (e *Engine) expireOverdue(ctx context.Context) {
	now := time.Now().UTC()
	expired, err := e.members.ListExpired(ctx, now)
	if err != nil {
		e.logger.Error("listing expired assignments failed", "error", err)
		return
	}

	for i := range expired {
		m := expired[i]
		lockerID := *m.AssignedLockerID

		unlock := e.locks.Lock(lockerID)

		// Re-read under the lock: a scan may have refreshed the
		// assignment while the sweep was queued.
		fresh, err := e.members.GetByID(ctx, m.ID)
		if err != nil || fresh.AssignedLockerID == nil ||
			fresh.ValidUntil == nil || fresh.ValidUntil.After(now) {
			unlock()
			continue
		}

		l, err := e.lockers.GetLocker(ctx, lockerID)
		if err != nil {
			e.logger.Warn("expired assignment points at missing locker",
				"member_id", fresh.ID, "locker_id", lockerID)
			fresh.AssignedLockerID = nil
			fresh.ValidUntil = nil
			if err := e.members.Update(ctx, fresh); err != nil {
				e.logger.Error("clearing dangling assignment failed",
					"member_id", fresh.ID, "error", err)
			}
			unlock()
			continue
		}

		uid := e.clearAssignment(ctx, l, fresh.ID)
		unlock()

		e.logActivity(ctx, &activity.Entry{
			MemberID: fresh.ID,
			LockerID: l.ID,
			Action:   activity.ActionAutoExpire,
			Details: map[string]any{
				"locker":      l.Name,
				"valid_until": fresh.ValidUntil.Format(time.RFC3339),
			},
		})

		if uid != "" {
			if err := e.dispatcher.DelUser(l, uid); err != nil {
				e.logger.Warn("deluser dispatch failed", "locker", l.Name, "error", err)
			}
		}

		e.logger.Info("assignment expired", "member_id", fresh.ID, "locker", l.Name)
	}
}

// repairOrphans restores the bidirectional assignment invariant
// (pass 2): every occupied locker must have exactly one member whose
// assignedLockerId points back at it. Deviations are forced back to
// available. This pass exists to recover from partial failures where
// one side of an assignment was persisted and the other was not.
func (e *Engine) repairOrphans(ctx context.Context) {
	occupied, err := e.lockers.ListByStatus(ctx, locker.StatusOccupied)
	if err != nil {
		e.logger.Error("listing occupied lockers failed", "error", err)
		return
	}

	for i := range occupied {
		l := occupied[i]

		unlock := e.locks.Lock(l.ID)

		fresh, err := e.lockers.GetLocker(ctx, l.ID)
		if err != nil || fresh.Status != locker.StatusOccupied {
			unlock()
			continue
		}

		orphaned, uid := e.isOrphaned(ctx, fresh)
		if !orphaned {
			unlock()
			continue
		}

		if err := e.unassignLocker(ctx, fresh); err != nil {
			e.logger.Error("orphan repair failed", "locker", fresh.Name, "error", err)
			unlock()
			continue
		}
		unlock()

		e.notifier.Notify(EventLockerUpdated, fresh)
		e.logActivity(ctx, &activity.Entry{
			LockerID: fresh.ID,
			Action:   activity.ActionCleanupOrphaned,
			Details:  map[string]any{"locker": fresh.Name},
		})

		if uid != "" {
			if err := e.dispatcher.DelUser(fresh, uid); err != nil {
				e.logger.Warn("deluser dispatch failed", "locker", fresh.Name, "error", err)
			}
		}

		e.logger.Warn("orphaned locker repaired", "locker", fresh.Name)
	}
}

// isOrphaned checks whether an occupied locker's counterpart member
// actually points back at it. Returns the member's uid when known so
// the repair can revoke it from the controller.
func (e *Engine) isOrphaned(ctx context.Context, l *locker.Locker) (bool, string) {
	if l.AssignedMemberID == nil {
		return true, ""
	}

	m, err := e.members.GetByID(ctx, *l.AssignedMemberID)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return true, ""
		}
		// Transient storage error: leave the locker alone this cycle.
		e.logger.Warn("orphan check lookup failed",
			"locker", l.Name, "member_id", *l.AssignedMemberID, "error", err)
		return false, ""
	}

	if m.AssignedLockerID == nil || *m.AssignedLockerID != l.ID {
		uid := ""
		if m.RFIDTag != nil {
			uid = *m.RFIDTag
		}
		return true, uid
	}

	return false, ""
}
