package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

func TestManualUnlock(t *testing.T) {
	f := newTestFixture()
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)

	require.NoError(t, f.engine.ManualUnlock(context.Background(), "lkr-1"))

	unlocks := f.transport.commandsOfType("openlock")
	require.Len(t, unlocks, 1)
	assert.Equal(t, "gym/F1/cmd", unlocks[0].Topic)
	assert.True(t, f.activity.hasAction(activity.ActionManualUnlock))
}

func TestManualUnlockDisconnected(t *testing.T) {
	f := newTestFixture()
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.transport.setConnected(false)

	err := f.engine.ManualUnlock(context.Background(), "lkr-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
	assert.False(t, f.activity.hasAction(activity.ActionManualUnlock),
		"no audit entry for a command that never left")
}

func TestManualUnlockUnknownLocker(t *testing.T) {
	f := newTestFixture()

	err := f.engine.ManualUnlock(context.Background(), "lkr-missing")
	assert.ErrorIs(t, err, locker.ErrLockerNotFound)
}

func TestAssignLocker(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")

	require.NoError(t, f.engine.AssignLocker(ctx, "lkr-1", "mem-1"))

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusOccupied, l.Status)
	require.NotNil(t, l.AssignedMemberID)
	assert.Equal(t, "mem-1", *l.AssignedMemberID)

	m, _ := f.members.GetByID(ctx, "mem-1")
	require.NotNil(t, m.AssignedLockerID)
	assert.Equal(t, "lkr-1", *m.AssignedLockerID)
	require.NotNil(t, m.ValidUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *m.ValidUntil, time.Minute)

	assert.True(t, f.activity.hasAction(activity.ActionManualAssign))
	assert.Len(t, f.transport.commandsOfType("adduser"), 1)
	assert.Len(t, f.transport.commandsOfType("openlock"), 1)
}

func TestAssignLockerAlreadyHeld(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	require.NoError(t, f.engine.AssignLocker(ctx, "lkr-1", "mem-1"))

	err := f.engine.AssignLocker(ctx, "lkr-2", "mem-1")
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestAssignLockerUnavailable(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusMaintenance)
	f.addMember("mem-1", "alex", "04AB11")

	err := f.engine.AssignLocker(ctx, "lkr-1", "mem-1")
	assert.ErrorIs(t, err, ErrLockerUnavailable)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.Nil(t, m.AssignedLockerID)
}

func TestReleaseLocker(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")
	require.NoError(t, f.engine.AssignLocker(ctx, "lkr-1", "mem-1"))

	require.NoError(t, f.engine.ReleaseLocker(ctx, "lkr-1"))

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusAvailable, l.Status)
	assert.Nil(t, l.AssignedMemberID)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.Nil(t, m.AssignedLockerID)
	assert.Nil(t, m.ValidUntil)

	assert.True(t, f.activity.hasAction(activity.ActionManualRelease))
	dels := f.transport.commandsOfType("deluser")
	require.Len(t, dels, 1)
	assert.Equal(t, "04AB11", dels[0].Payload["uid"])
}

func TestReleaseLockerNotAssigned(t *testing.T) {
	f := newTestFixture()
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)

	err := f.engine.ReleaseLocker(context.Background(), "lkr-1")
	assert.ErrorIs(t, err, ErrNotAssigned)
}
