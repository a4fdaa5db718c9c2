package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

func dispatchTestLocker() *locker.Locker {
	return &locker.Locker{
		ID:        "lkr-1",
		Name:      "F1A",
		Topic:     "gym/F1",
		IPAddress: "10.0.0.5",
		LockIndex: 1,
	}
}

func TestDispatcherOpenLock(t *testing.T) {
	transport := newMockTransport()
	d := NewDispatcher(transport)

	require.NoError(t, d.OpenLock(dispatchTestLocker()))

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "gym/F1/cmd", msgs[0].Topic)
	assert.Equal(t, "openlock", msgs[0].Payload["cmd"])
	assert.Equal(t, "10.0.0.5", msgs[0].Payload["doorip"])
	assert.Equal(t, float64(1), msgs[0].Payload["lock"])
}

func TestDispatcherAddUser(t *testing.T) {
	transport := newMockTransport()
	d := NewDispatcher(transport)

	validUntil := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, d.AddUser(dispatchTestLocker(), "alex", "04AB11", validUntil))

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "gym/F1/cmd", msgs[0].Topic)
	assert.Equal(t, "adduser", msgs[0].Payload["cmd"])
	assert.Equal(t, "alex", msgs[0].Payload["user"])
	assert.Equal(t, "04AB11", msgs[0].Payload["uid"])
	assert.Equal(t, float64(validUntil.Unix()), msgs[0].Payload["validuntil"])
}

func TestDispatcherDelUser(t *testing.T) {
	transport := newMockTransport()
	d := NewDispatcher(transport)

	require.NoError(t, d.DelUser(dispatchTestLocker(), "04AB11"))

	msgs := transport.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "deluser", msgs[0].Payload["cmd"])
	assert.Equal(t, "04AB11", msgs[0].Payload["uid"])
	assert.Equal(t, "10.0.0.5", msgs[0].Payload["doorip"])
}

func TestDispatcherDisconnectedTransport(t *testing.T) {
	transport := newMockTransport()
	transport.setConnected(false)
	d := NewDispatcher(transport)

	err := d.OpenLock(dispatchTestLocker())
	require.Error(t, err)
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
}
