package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/config"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the narrow MQTT surface the engine needs.
// Satisfied by *mqtt.Client.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Telemetry is the optional metrics sink. Satisfied by *telemetry.Client.
type Telemetry interface {
	WriteHeartbeat(lockerID string, uptimeSeconds int64, online bool)
	WriteAccessEvent(lockerID, action string)
}

// noopTelemetry is a Telemetry sink that does nothing.
type noopTelemetry struct{}

func (noopTelemetry) WriteHeartbeat(string, int64, bool) {}
func (noopTelemetry) WriteAccessEvent(string, string)    {}

// Engine wires the router, processors, dispatcher, and sweeps around
// the locker registry and member repository.
type Engine struct {
	cfg      config.EngineConfig
	lockers  *locker.Registry
	groups   locker.GroupRepository
	members  member.Repository
	activity activity.Repository

	transport  Transport
	dispatcher *Dispatcher
	notifier   Notifier
	telemetry  Telemetry
	logger     Logger

	// locks serializes read-then-write mutations per locker ID.
	locks *keyMutex

	// Sweep re-entrancy guards.
	expiryRunning  atomic.Bool
	offlineRunning atomic.Bool
}

// New creates an engine over the given collaborators.
// Logger, notifier, and telemetry default to no-ops; set them via the
// Set* methods before Start.
func New(
	cfg config.EngineConfig,
	lockers *locker.Registry,
	groups locker.GroupRepository,
	members member.Repository,
	activityRepo activity.Repository,
	transport Transport,
) *Engine {
	return &Engine{
		cfg:        cfg,
		lockers:    lockers,
		groups:     groups,
		members:    members,
		activity:   activityRepo,
		transport:  transport,
		dispatcher: NewDispatcher(transport),
		notifier:   noopNotifier{},
		telemetry:  noopTelemetry{},
		logger:     noopLogger{},
		locks:      newKeyMutex(),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetNotifier sets the change-notification sink.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SetTelemetry sets the optional metrics sink.
func (e *Engine) SetTelemetry(t Telemetry) {
	e.telemetry = t
}

// Dispatcher exposes the command dispatcher for collaborators (API layer).
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Start subscribes to device traffic and launches the periodic sweeps.
// The sweeps stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	topics := mqtt.Topics{}
	if err := e.transport.Subscribe(topics.DeviceWildcard(), commandQoS, func(topic string, payload []byte) error {
		return e.HandleMessage(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to device traffic: %w", err)
	}

	go e.sweepLoop(ctx, e.cfg.ExpirySweepInterval(), e.RunExpirySweep)
	go e.sweepLoop(ctx, e.cfg.OfflineSweepInterval(), e.RunOfflineSweep)

	e.logger.Info("engine started",
		"expiry_sweep", e.cfg.ExpirySweepInterval().String(),
		"offline_sweep", e.cfg.OfflineSweepInterval().String(),
	)
	return nil
}

// sweepLoop runs a sweep function on a ticker until ctx is cancelled.
func (e *Engine) sweepLoop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// ManualUnlock publishes an immediate unlock for a locker on behalf of
// an operator. A disconnected transport propagates as an error so the
// HTTP layer can fail the request.
func (e *Engine) ManualUnlock(ctx context.Context, lockerID string) error {
	l, err := e.lockers.GetLocker(ctx, lockerID)
	if err != nil {
		return err
	}

	if err := e.dispatcher.OpenLock(l); err != nil {
		return err
	}

	e.logActivity(ctx, &activity.Entry{
		LockerID: l.ID,
		Action:   activity.ActionManualUnlock,
		Details:  map[string]any{"locker": l.Name},
	})
	return nil
}

// AssignLocker assigns a locker to a member on behalf of an operator,
// following the same persistence-before-publish path as RFID
// auto-assignment.
func (e *Engine) AssignLocker(ctx context.Context, lockerID, memberID string) error {
	m, err := e.members.GetByID(ctx, memberID)
	if err != nil {
		return err
	}
	if m.AssignedLockerID != nil {
		return fmt.Errorf("%w: member %s holds %s", ErrAlreadyAssigned, m.ID, *m.AssignedLockerID)
	}

	unlock := e.locks.Lock(lockerID)
	defer unlock()

	l, err := e.lockers.GetLocker(ctx, lockerID)
	if err != nil {
		return err
	}
	if l.Status != locker.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", ErrLockerUnavailable, l.Name, l.Status)
	}

	if err := e.persistAssignment(ctx, l, m); err != nil {
		return err
	}

	e.logActivity(ctx, &activity.Entry{
		MemberID: m.ID,
		LockerID: l.ID,
		Action:   activity.ActionManualAssign,
		Details:  map[string]any{"locker": l.Name},
	})
	e.enrolAndUnlock(l, m, 0)
	return nil
}

// ReleaseLocker clears a locker's assignment on behalf of an operator.
func (e *Engine) ReleaseLocker(ctx context.Context, lockerID string) error {
	unlock := e.locks.Lock(lockerID)
	defer unlock()

	l, err := e.lockers.GetLocker(ctx, lockerID)
	if err != nil {
		return err
	}
	if l.Status != locker.StatusOccupied || l.AssignedMemberID == nil {
		return fmt.Errorf("%w: %s", ErrNotAssigned, l.Name)
	}

	memberID := *l.AssignedMemberID
	uid := e.clearAssignment(ctx, l, memberID)

	e.logActivity(ctx, &activity.Entry{
		MemberID: memberID,
		LockerID: l.ID,
		Action:   activity.ActionManualRelease,
		Details:  map[string]any{"locker": l.Name},
	})

	if uid != "" {
		if err := e.dispatcher.DelUser(l, uid); err != nil {
			e.logger.Warn("deluser dispatch failed", "locker", l.Name, "error", err)
		}
	}
	return nil
}

// persistAssignment sets both sides of an assignment and persists
// locker then member. Callers hold the locker's keyed mutex.
func (e *Engine) persistAssignment(ctx context.Context, l *locker.Locker, m *member.Member) error {
	now := time.Now().UTC()
	validUntil := now.Add(e.cfg.AssignmentTTL())

	l.Status = locker.StatusOccupied
	l.AssignedMemberID = &m.ID
	l.LastUsedAt = &now
	if err := e.lockers.UpdateLocker(ctx, l); err != nil {
		return fmt.Errorf("persisting locker assignment: %w", err)
	}

	m.AssignedLockerID = &l.ID
	m.ValidUntil = &validUntil
	if err := e.members.Update(ctx, m); err != nil {
		// Locker side is already persisted; the orphan pass repairs
		// this if we crash here too.
		if rollbackErr := e.unassignLocker(ctx, l); rollbackErr != nil {
			e.logger.Error("rolling back locker assignment failed",
				"locker", l.Name, "error", rollbackErr)
		}
		return fmt.Errorf("persisting member assignment: %w", err)
	}

	e.notifier.Notify(EventLockerUpdated, l)
	e.notifier.Notify(EventMemberUpdated, m)
	return nil
}

// unassignLocker returns a locker to available and clears its member link.
func (e *Engine) unassignLocker(ctx context.Context, l *locker.Locker) error {
	l.Status = locker.StatusAvailable
	l.AssignedMemberID = nil
	return e.lockers.UpdateLocker(ctx, l)
}

// clearAssignment clears both sides of an assignment and returns the
// member's RFID uid (for deluser), empty when unavailable. Storage
// errors are logged, not returned: the orphan pass repairs leftovers.
func (e *Engine) clearAssignment(ctx context.Context, l *locker.Locker, memberID string) string {
	if err := e.unassignLocker(ctx, l); err != nil {
		e.logger.Error("clearing locker assignment failed", "locker", l.Name, "error", err)
	}

	uid := ""
	m, err := e.members.GetByID(ctx, memberID)
	if err != nil {
		e.logger.Warn("assigned member not found during release",
			"member_id", memberID, "locker", l.Name)
	} else {
		if m.RFIDTag != nil {
			uid = *m.RFIDTag
		}
		m.AssignedLockerID = nil
		m.ValidUntil = nil
		if err := e.members.Update(ctx, m); err != nil {
			e.logger.Error("clearing member assignment failed",
				"member_id", memberID, "error", err)
		}
		e.notifier.Notify(EventMemberUpdated, m)
	}

	e.notifier.Notify(EventLockerUpdated, l)
	return uid
}

// enrolAndUnlock pushes the member's tag to the controller and
// schedules the unlock after the given delay. A zero delay publishes
// synchronously; otherwise the publish runs as a scheduled callback so
// message processing never blocks on it.
func (e *Engine) enrolAndUnlock(l *locker.Locker, m *member.Member, delay time.Duration) {
	if m.RFIDTag != nil && m.ValidUntil != nil {
		if err := e.dispatcher.AddUser(l, m.Name, *m.RFIDTag, *m.ValidUntil); err != nil {
			e.logger.Warn("adduser dispatch failed", "locker", l.Name, "error", err)
		}
	}

	e.scheduleUnlock(l, delay)
}

// scheduleUnlock publishes an unlock now or after a delay.
func (e *Engine) scheduleUnlock(l *locker.Locker, delay time.Duration) {
	publish := func() {
		if err := e.dispatcher.OpenLock(l); err != nil {
			e.logger.Warn("unlock dispatch failed", "locker", l.Name, "error", err)
		}
	}

	if delay <= 0 {
		publish()
		return
	}
	time.AfterFunc(delay, publish)
}

// logActivity appends an audit entry and notifies the presentation layer.
// Append failures are logged, never raised.
func (e *Engine) logActivity(ctx context.Context, entry *activity.Entry) {
	if err := e.activity.Create(ctx, entry); err != nil {
		e.logger.Error("appending activity log failed",
			"action", entry.Action, "error", err)
		return
	}
	e.notifier.Notify(EventActivity, entry)
}

// newID generates a prefixed short identifier.
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
