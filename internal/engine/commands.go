package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// commandQoS is the QoS level for outbound locker commands.
const commandQoS = 1

// openLockCommand is the unlock payload: {cmd:"openlock", doorip, lock}.
type openLockCommand struct {
	Cmd    string `json:"cmd"`
	DoorIP string `json:"doorip"`
	Lock   int    `json:"lock"`
}

// addUserCommand pushes a tag to the controller:
// {cmd:"adduser", user, validuntil, uid, doorip}.
type addUserCommand struct {
	Cmd        string `json:"cmd"`
	User       string `json:"user"`
	ValidUntil int64  `json:"validuntil"`
	UID        string `json:"uid"`
	DoorIP     string `json:"doorip"`
}

// delUserCommand revokes a tag from the controller:
// {cmd:"deluser", doorip, uid}.
type delUserCommand struct {
	Cmd    string `json:"cmd"`
	DoorIP string `json:"doorip"`
	UID    string `json:"uid"`
}

// Dispatcher builds and publishes the fixed command vocabulary to
// locker controllers.
//
// Commands are published to the locker's registered command topic
// (<topic>/cmd). When the transport is disconnected, dispatch fails
// with mqtt.ErrNotConnected, which callers must surface or log; it is
// never silently swallowed.
type Dispatcher struct {
	transport Transport
	topics    mqtt.Topics
}

// NewDispatcher creates a command dispatcher over the given transport.
func NewDispatcher(transport Transport) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// OpenLock publishes an unlock command for the locker.
func (d *Dispatcher) OpenLock(l *locker.Locker) error {
	return d.publish(l, openLockCommand{
		Cmd:    "openlock",
		DoorIP: l.IPAddress,
		Lock:   l.LockIndex,
	})
}

// AddUser publishes a tag-enrolment command so the controller can
// grant access locally.
func (d *Dispatcher) AddUser(l *locker.Locker, userName, uid string, validUntil time.Time) error {
	return d.publish(l, addUserCommand{
		Cmd:        "adduser",
		User:       userName,
		ValidUntil: validUntil.Unix(),
		UID:        uid,
		DoorIP:     l.IPAddress,
	})
}

// DelUser publishes a tag-revocation command.
func (d *Dispatcher) DelUser(l *locker.Locker, uid string) error {
	return d.publish(l, delUserCommand{
		Cmd:    "deluser",
		DoorIP: l.IPAddress,
		UID:    uid,
	})
}

// publish marshals a command and sends it to the locker's command topic.
func (d *Dispatcher) publish(l *locker.Locker, cmd any) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	topic := d.topics.DeviceCommand(l.Topic)
	if err := d.transport.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("dispatching command to %s: %w", l.Name, err)
	}

	return nil
}
