package engine

// Change-notification event names consumed by the presentation layer
// (WebSocket hub).
const (
	EventLockerCreated = "locker-created"
	EventLockerUpdated = "locker-updated"
	EventMemberUpdated = "member-updated"
	EventHeartbeat     = "heartbeat-received"
	EventOfflineBatch  = "offline-batch"
	EventActivity      = "activity-logged"
)

// Notifier receives a change notification for each engine state
// transition. Implementations must not block; the WebSocket hub
// buffers per client.
type Notifier interface {
	Notify(event string, payload any)
}

// noopNotifier is a Notifier that does nothing.
type noopNotifier struct{}

func (noopNotifier) Notify(string, any) {}
