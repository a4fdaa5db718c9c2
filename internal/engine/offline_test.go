package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// setHeartbeat stamps a locker's last heartbeat at the given age.
func setHeartbeat(t *testing.T, f *testFixture, lockerID string, age time.Duration) {
	t.Helper()
	at := time.Now().UTC().Add(-age)
	require.NoError(t, f.registry.RecordHeartbeat(context.Background(), lockerID, "10.0.0.5", 100, at))
}

func TestOfflineSweepFlipsStaleLockers(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addLocker("lkr-3", "M2A", "gym/M2", "10.0.0.8", locker.StatusAvailable)
	setHeartbeat(t, f, "lkr-1", 5*time.Minute)
	setHeartbeat(t, f, "lkr-2", 5*time.Minute)
	setHeartbeat(t, f, "lkr-3", 10*time.Second)

	f.engine.RunOfflineSweep(ctx)

	a, _ := f.registry.GetLocker(ctx, "lkr-1")
	b, _ := f.registry.GetLocker(ctx, "lkr-2")
	c, _ := f.registry.GetLocker(ctx, "lkr-3")
	assert.False(t, a.Online)
	assert.False(t, b.Online)
	assert.True(t, c.Online, "fresh heartbeat keeps the locker online")

	// One batch entry and one batch notification, not one per locker.
	batches := f.activity.entriesFor(activity.ActionOfflineBatch)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Details["count"])
	assert.True(t, f.notifier.has(EventOfflineBatch))
}

func TestOfflineSweepNeverHeardLockerGoesOffline(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	// Marked online without any recorded heartbeat: stale by definition.
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)

	f.engine.RunOfflineSweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.False(t, got.Online)
}

func TestOfflineSweepLeavesAssignmentsAlone(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	assign(t, f, "lkr-1", "mem-1", time.Now().UTC().Add(time.Hour))
	setHeartbeat(t, f, "lkr-1", 5*time.Minute)

	f.engine.RunOfflineSweep(ctx)

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.False(t, l.Online)
	assert.Equal(t, locker.StatusOccupied, l.Status, "connectivity never touches assignment state")
	require.NotNil(t, l.AssignedMemberID)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.NotNil(t, m.AssignedLockerID)
}

func TestOfflineSweepQuietWhenNothingChanges(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	setHeartbeat(t, f, "lkr-1", 10*time.Second)

	f.engine.RunOfflineSweep(ctx)

	assert.Empty(t, f.activity.entriesFor(activity.ActionOfflineBatch))
	assert.False(t, f.notifier.has(EventOfflineBatch))
}

func TestOfflineSweepNotReentrant(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	setHeartbeat(t, f, "lkr-1", 5*time.Minute)

	f.engine.offlineRunning.Store(true)
	f.engine.RunOfflineSweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.True(t, got.Online, "a running sweep must refuse re-entry")
}

func TestHeartbeatRevivesOfflineLocker(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	setHeartbeat(t, f, "lkr-1", 5*time.Minute)
	f.engine.RunOfflineSweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	require.False(t, got.Online)

	require.NoError(t, f.engine.HandleMessage(ctx, "gym/F1/send",
		heartbeatJSON("F1-1", "10.0.0.5", 50, 0)))

	got, _ = f.registry.GetLocker(ctx, "lkr-1")
	assert.True(t, got.Online)
}
