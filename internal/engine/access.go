package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// Denial reasons recorded in access-denied activity entries.
const (
	denialNoGroup   = "no-group"
	denialGroupFull = "group-full"
)

// handleAccess runs the RFID access state machine for a classified scan.
//
// Branch A: an assigned member unlocks their own locker from any
// reader. Branch B: an unassigned member is auto-assigned the scanned
// locker, or an available locker within the same group; group
// membership is a hard boundary.
func (e *Engine) handleAccess(ctx context.Context, ev AccessEvent) {
	// Blank uids never mutate state.
	if ev.UID == "" {
		e.logger.Debug("access event with blank uid discarded", "door", ev.Door.Raw)
		return
	}

	m, err := e.members.GetByRFIDTag(ctx, ev.UID)
	if err != nil {
		if !errors.Is(err, member.ErrMemberNotFound) {
			e.logger.Error("rfid tag lookup failed", "uid", ev.UID, "error", err)
			return
		}

		// Unknown tag denied by the controller: bind it to a guest so
		// the next scan can assign a locker.
		if !ev.KnownTag && ev.Denied {
			m = e.createGuest(ctx, ev.UID)
			if m == nil {
				return
			}
		} else {
			e.logActivity(ctx, &activity.Entry{
				Action:  activity.ActionUnknownTag,
				Details: map[string]any{"uid": ev.UID, "door": ev.Door.Raw},
			})
			return
		}
	}

	if m.AssignedLockerID != nil {
		e.unlockAssigned(ctx, m, ev)
		return
	}

	e.autoAssign(ctx, m, ev)
}

// createGuest auto-creates a guest member bound to a denied unknown tag.
func (e *Engine) createGuest(ctx context.Context, uid string) *member.Member {
	tag := uid
	m := &member.Member{
		ID:      newID("mem"),
		Name:    "guest-" + uid,
		Role:    member.RoleGuest,
		RFIDTag: &tag,
	}

	if err := e.members.Create(ctx, m); err != nil {
		// A concurrent scan may have created the guest already.
		if errors.Is(err, member.ErrTagConflict) {
			existing, lookupErr := e.members.GetByRFIDTag(ctx, uid)
			if lookupErr == nil {
				return existing
			}
		}
		e.logger.Error("guest creation failed", "uid", uid, "error", err)
		return nil
	}

	e.logActivity(ctx, &activity.Entry{
		MemberID: m.ID,
		Action:   activity.ActionGuestCreated,
		Details:  map[string]any{"uid": uid},
	})
	e.notifier.Notify(EventMemberUpdated, m)
	return m
}

// unlockAssigned unconditionally unlocks the member's own locker,
// regardless of which door the scan occurred at (Branch A).
func (e *Engine) unlockAssigned(ctx context.Context, m *member.Member, ev AccessEvent) {
	l, err := e.lockers.GetLocker(ctx, *m.AssignedLockerID)
	if err != nil {
		e.logger.Error("assigned locker not found",
			"member_id", m.ID, "locker_id", *m.AssignedLockerID, "error", err)
		return
	}

	e.logActivity(ctx, &activity.Entry{
		MemberID: m.ID,
		LockerID: l.ID,
		Action:   activity.ActionUnlockAssigned,
		Details:  map[string]any{"door": ev.Door.Raw, "locker": l.Name},
	})
	e.telemetry.WriteAccessEvent(l.ID, activity.ActionUnlockAssigned)

	e.scheduleUnlock(l, e.unlockDelay(ev.Door, l.Name))
}

// autoAssign runs Branch B: exact/bank candidates first, then the
// same-group fallback, then denial.
func (e *Engine) autoAssign(ctx context.Context, m *member.Member, ev AccessEvent) {
	candidates := e.lockers.FindByDoor(ev.Door)

	// Exact or bank-level candidates.
	for i := range candidates {
		if candidates[i].Status != locker.StatusAvailable {
			continue
		}
		if e.tryAssign(ctx, m, candidates[i].ID, ev, activity.ActionAutoAssign) {
			return
		}
	}

	if len(candidates) == 0 {
		e.deny(ctx, m, ev, denialNoGroup)
		return
	}

	// Same-group fallback: never assign outside the scanned door's group.
	group, err := e.groups.GetForLocker(ctx, candidates[0].ID)
	if err != nil {
		if !errors.Is(err, locker.ErrGroupNotFound) {
			e.logger.Error("group lookup failed",
				"locker_id", candidates[0].ID, "error", err)
		}
		e.deny(ctx, m, ev, denialNoGroup)
		return
	}

	for _, lockerID := range group.LockerIDs {
		candidate, err := e.lockers.GetLocker(ctx, lockerID)
		if err != nil || candidate.Status != locker.StatusAvailable {
			continue
		}
		if e.tryAssign(ctx, m, candidate.ID, ev, activity.ActionAutoAssignGroup) {
			return
		}
	}

	e.deny(ctx, m, ev, denialGroupFull)
}

// tryAssign attempts to claim one locker for the member under its
// keyed mutex, re-reading state inside the lock so a racing scan or
// sweep cannot double-assign. Returns true when the claim succeeded.
func (e *Engine) tryAssign(ctx context.Context, m *member.Member, lockerID string, ev AccessEvent, action string) bool {
	unlock := e.locks.Lock(lockerID)
	defer unlock()

	l, err := e.lockers.GetLocker(ctx, lockerID)
	if err != nil {
		e.logger.Warn("assignment candidate vanished", "locker_id", lockerID, "error", err)
		return false
	}
	if l.Status != locker.StatusAvailable {
		return false
	}

	// Re-read the member too: a concurrent scan at another reader may
	// have assigned them already.
	fresh, err := e.members.GetByID(ctx, m.ID)
	if err != nil {
		e.logger.Error("member lookup failed during assignment",
			"member_id", m.ID, "error", err)
		return false
	}
	if fresh.AssignedLockerID != nil {
		e.unlockAssigned(ctx, fresh, ev)
		return true
	}

	if err := e.persistAssignment(ctx, l, fresh); err != nil {
		e.logger.Error("assignment failed",
			"member_id", fresh.ID, "locker", l.Name, "error", err)
		return false
	}

	e.logActivity(ctx, &activity.Entry{
		MemberID: fresh.ID,
		LockerID: l.ID,
		Action:   action,
		Details:  map[string]any{"door": ev.Door.Raw, "locker": l.Name},
	})
	e.telemetry.WriteAccessEvent(l.ID, action)

	e.enrolAndUnlock(l, fresh, e.unlockDelay(ev.Door, l.Name))
	return true
}

// deny records an access denial with its specific reason.
func (e *Engine) deny(ctx context.Context, m *member.Member, ev AccessEvent, reason string) {
	e.logActivity(ctx, &activity.Entry{
		MemberID: m.ID,
		Action:   activity.ActionAccessDenied,
		Details:  map[string]any{"uid": ev.UID, "door": ev.Door.Raw, "reason": reason},
	})
	e.telemetry.WriteAccessEvent("", activity.ActionAccessDenied)
	e.logger.Info("access denied", "uid", ev.UID, "door", ev.Door.Raw, "reason", reason)
}

// unlockDelay picks the pre-publish delay: a scan at the bank hosting
// the target locker unlocks immediately, a remote reader gets the
// courtesy delay.
func (e *Engine) unlockDelay(door locker.DoorRef, lockerName string) time.Duration {
	if door.SameBank(lockerName) {
		return e.cfg.UnlockDelayOwn()
	}
	return e.cfg.UnlockDelayRemote()
}
