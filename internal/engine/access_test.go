package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

func TestAccessBlankUIDDiscarded(t *testing.T) {
	f := newTestFixture()

	err := f.engine.HandleMessage(context.Background(), "gym/F1/send",
		accessLogJSON("", "F1A", "no", "denied"))
	require.NoError(t, err)

	assert.Empty(t, f.activity.actions())
	assert.Empty(t, f.transport.messages())
}

func TestAccessUnknownTagLogged(t *testing.T) {
	f := newTestFixture()
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)

	// Recognised-but-unregistered tag: logged, never auto-bound to a guest.
	err := f.engine.HandleMessage(context.Background(), "gym/F1/send",
		accessLogJSON("04ZZ99", "F1A", "yes", "granted"))
	require.NoError(t, err)

	assert.True(t, f.activity.hasAction(activity.ActionUnknownTag))
	assert.Empty(t, f.transport.messages())

	_, err = f.members.GetByRFIDTag(context.Background(), "04ZZ99")
	assert.Error(t, err, "no guest must be created for a granted unknown tag")
}

func TestAccessGuestCreatedOnWarnEvent(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()
	f.addLocker("lkr-1", "M2A", "gym/M2", "10.0.0.8", locker.StatusAvailable)

	err := f.engine.HandleMessage(ctx, "gym/M2/send",
		warnEventJSON("M2-1", "04CD22 MIFARE_Classic"))
	require.NoError(t, err)

	guest, err := f.members.GetByRFIDTag(ctx, "04CD22")
	require.NoError(t, err)
	assert.Equal(t, "guest-04CD22", guest.Name)
	assert.True(t, f.activity.hasAction(activity.ActionGuestCreated))

	// The fresh guest falls straight through to auto-assignment.
	require.NotNil(t, guest.AssignedLockerID)
	assert.Equal(t, "lkr-1", *guest.AssignedLockerID)
	assert.True(t, f.activity.hasAction(activity.ActionAutoAssign))

	l, err := f.registry.GetLocker(ctx, "lkr-1")
	require.NoError(t, err)
	assert.Equal(t, locker.StatusOccupied, l.Status)
	require.NotNil(t, l.AssignedMemberID)
	assert.Equal(t, guest.ID, *l.AssignedMemberID)

	// Enrolment then unlock, both to the controller's command topic.
	require.Len(t, f.transport.commandsOfType("adduser"), 1)
	unlocks := f.transport.commandsOfType("openlock")
	require.Len(t, unlocks, 1)
	assert.Equal(t, "gym/M2/cmd", unlocks[0].Topic)
}

func TestAccessAssignedMemberUnlocksOwnLockerFromRemoteDoor(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	own := f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addLocker("lkr-2", "M2A", "gym/M2", "10.0.0.8", locker.StatusAvailable)

	m := f.addMember("mem-1", "alex", "04AB11")
	m.AssignedLockerID = &own.ID
	require.NoError(t, f.members.Update(ctx, m))
	own.AssignedMemberID = &m.ID
	require.NoError(t, f.registry.UpdateLocker(ctx, own))

	// Scan at a remote reader: the member's own locker opens, not the
	// scanned one.
	err := f.engine.HandleMessage(ctx, "gym/M2/send",
		accessLogJSON("04AB11", "M2-1", "no", "denied"))
	require.NoError(t, err)

	unlocks := f.transport.commandsOfType("openlock")
	require.Len(t, unlocks, 1)
	assert.Equal(t, "gym/F1/cmd", unlocks[0].Topic)
	assert.Equal(t, "10.0.0.5", unlocks[0].Payload["doorip"])
	assert.True(t, f.activity.hasAction(activity.ActionUnlockAssigned))

	// The scanned locker stays untouched.
	scanned, _ := f.registry.GetLocker(ctx, "lkr-2")
	assert.Equal(t, locker.StatusAvailable, scanned.Status)
}

func TestAccessAutoAssignExactDoor(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")

	err := f.engine.HandleMessage(ctx, "gym/F1/send",
		accessLogJSON("04AB11", "F1A", "no", "denied"))
	require.NoError(t, err)

	l, _ := f.registry.GetLocker(ctx, "lkr-1")
	assert.Equal(t, locker.StatusOccupied, l.Status)

	m, _ := f.members.GetByID(ctx, "mem-1")
	require.NotNil(t, m.AssignedLockerID)
	assert.Equal(t, "lkr-1", *m.AssignedLockerID)
	assert.NotNil(t, m.ValidUntil, "assignment carries an expiry deadline")

	// Sibling compartment stays free.
	sibling, _ := f.registry.GetLocker(ctx, "lkr-2")
	assert.Equal(t, locker.StatusAvailable, sibling.Status)

	assert.True(t, f.activity.hasAction(activity.ActionAutoAssign))
	assert.Len(t, f.transport.commandsOfType("openlock"), 1)
}

func TestAccessAutoAssignGroupFallback(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addLocker("lkr-3", "M2A", "gym/M2", "10.0.0.8", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")

	require.NoError(t, f.groups.Create(ctx, &locker.Group{
		ID:        "grp-1",
		Name:      "ground floor",
		LockerIDs: []string{"lkr-1", "lkr-2", "lkr-3"},
	}))

	err := f.engine.HandleMessage(ctx, "gym/F1/send",
		accessLogJSON("04AB11", "F1A", "no", "denied"))
	require.NoError(t, err)

	m, _ := f.members.GetByID(ctx, "mem-1")
	require.NotNil(t, m.AssignedLockerID)
	assert.Equal(t, "lkr-3", *m.AssignedLockerID, "fallback picks the free group sibling")
	assert.True(t, f.activity.hasAction(activity.ActionAutoAssignGroup))

	// Remote bank gets the courtesy unlock to its own controller topic.
	unlocks := f.transport.commandsOfType("openlock")
	require.Len(t, unlocks, 1)
	assert.Equal(t, "gym/M2/cmd", unlocks[0].Topic)
}

func TestAccessDeniedOutsideAnyGroup(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	// Both compartments taken, locker not in any group: denial, never an
	// assignment outside the scanned door's group.
	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addLocker("lkr-3", "M2A", "gym/M2", "10.0.0.8", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")

	err := f.engine.HandleMessage(ctx, "gym/F1/send",
		accessLogJSON("04AB11", "F1A", "no", "denied"))
	require.NoError(t, err)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.Nil(t, m.AssignedLockerID)

	outside, _ := f.registry.GetLocker(ctx, "lkr-3")
	assert.Equal(t, locker.StatusAvailable, outside.Status, "lockers outside the group are off limits")

	require.True(t, f.activity.hasAction(activity.ActionAccessDenied))
	for _, e := range f.activity.entriesFor(activity.ActionAccessDenied) {
		assert.Equal(t, denialNoGroup, e.Details["reason"])
	}
}

func TestAccessDeniedGroupFull(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusOccupied)
	f.addMember("mem-1", "alex", "04AB11")

	require.NoError(t, f.groups.Create(ctx, &locker.Group{
		ID:        "grp-1",
		Name:      "ground floor",
		LockerIDs: []string{"lkr-1", "lkr-2"},
	}))

	err := f.engine.HandleMessage(ctx, "gym/F1/send",
		accessLogJSON("04AB11", "F1A", "no", "denied"))
	require.NoError(t, err)

	m, _ := f.members.GetByID(ctx, "mem-1")
	assert.Nil(t, m.AssignedLockerID)

	require.True(t, f.activity.hasAction(activity.ActionAccessDenied))
	for _, e := range f.activity.entriesFor(activity.ActionAccessDenied) {
		assert.Equal(t, denialGroupFull, e.Details["reason"])
	}
	assert.Empty(t, f.transport.messages())
}

func TestAccessDoubleScanIsIdempotent(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	f.addLocker("lkr-1", "F1A", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addLocker("lkr-2", "F1B", "gym/F1", "10.0.0.5", locker.StatusAvailable)
	f.addMember("mem-1", "alex", "04AB11")

	scan := accessLogJSON("04AB11", "F1A", "no", "denied")
	require.NoError(t, f.engine.HandleMessage(ctx, "gym/F1/send", scan))
	require.NoError(t, f.engine.HandleMessage(ctx, "gym/F1/send", scan))

	// Second scan re-opens the held locker instead of claiming another.
	m, _ := f.members.GetByID(ctx, "mem-1")
	require.NotNil(t, m.AssignedLockerID)
	assert.Equal(t, "lkr-1", *m.AssignedLockerID)

	sibling, _ := f.registry.GetLocker(ctx, "lkr-2")
	assert.Equal(t, locker.StatusAvailable, sibling.Status)

	assert.Len(t, f.transport.commandsOfType("openlock"), 2)
	assert.True(t, f.activity.hasAction(activity.ActionUnlockAssigned))
}
