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

// assign wires both sides of an assignment directly into the fixtures.
func assign(t *testing.T, f *testFixture, lockerID, memberID string, validUntil time.Time) {
	t.Helper()
	ctx := context.Background()

	l, err := f.registry.GetLocker(ctx, lockerID)
	require.NoError(t, err)
	l.Status = locker.StatusOccupied
	l.AssignedMemberID = &memberID
	require.NoError(t, f.registry.UpdateLocker(ctx, l))

	m, err := f.members.GetByID(ctx, memberID)
	require.NoError(t, err)
	m.AssignedLockerID = &lockerID
	m.ValidUntil = &validUntil
	require.NoError(t, f.members.Update(ctx, m))
}

func TestExpirySweepClearsOverdueAssignment(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	assign(t, f, "lkr-1", "mem-1", time.Now().UTC().Add(-time.Hour))

	f.engine.RunExpirySweep(ctx)

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusAvailable, l.Status)
	assert.Nil(t, l.AssignedMemberID)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.Nil(t, m.AssignedLockerID)
	assert.Nil(t, m.ValidUntil)

	assert.True(t, f.activity.hasAction(activity.ActionAutoExpire))

	// The controller-side grant is revoked after state is persisted.
	dels := f.transport.commandsOfType("deluser")
	require.Len(t, dels, 1)
	assert.Equal(t, "04AB11", dels[0].Payload["uid"])
}

func TestExpirySweepLeavesCurrentAssignments(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	assign(t, f, "lkr-1", "mem-1", time.Now().UTC().Add(time.Hour))

	f.engine.RunExpirySweep(ctx)

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusOccupied, l.Status)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.NotNil(t, m.AssignedLockerID)
	assert.False(t, f.activity.hasAction(activity.ActionAutoExpire))
	assert.Empty(t, f.transport.commandsOfType("deluser"))
}

func TestExpirySweepRepairsOrphanedLocker(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	// Occupied locker whose member no longer points back: the partial
	// failure the repair pass exists for.
	l := f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	m := f.addMember("mem-1", "alex", "04AB11")
	l.AssignedMemberID = &m.ID
	require.NoError(t, f.registry.UpdateLocker(ctx, l))

	f.engine.RunExpirySweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusAvailable, got.Status)
	assert.Nil(t, got.AssignedMemberID)
	assert.True(t, f.activity.hasAction(activity.ActionCleanupOrphaned))

	dels := f.transport.commandsOfType("deluser")
	require.Len(t, dels, 1)
	assert.Equal(t, "04AB11", dels[0].Payload["uid"])
}

func TestExpirySweepRepairsOccupiedWithoutMember(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)

	f.engine.RunExpirySweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusAvailable, got.Status)
	assert.True(t, f.activity.hasAction(activity.ActionCleanupOrphaned))
	assert.Empty(t, f.transport.commandsOfType("deluser"), "no uid known, nothing to revoke")
}

func TestExpirySweepLeavesIntactAssignments(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	assign(t, f, "lkr-1", "mem-1", time.Now().UTC().Add(time.Hour))

	f.engine.RunExpirySweep(ctx)

	got, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusOccupied, got.Status)
	assert.False(t, f.activity.hasAction(activity.ActionCleanupOrphaned))
}

func TestExpirySweepNotReentrant(t *testing.T) {
	f := newTestFixture()

	f.engine.expiryRunning.Store(true)
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)

	f.engine.RunExpirySweep(context.Background())

	got, _ := f.registry.GetLocker(context.Background(), "lkr-1")
	assert.Equal(t, locker.StatusOccupied, got.Status, "a running sweep must refuse re-entry")
}
