package locker

import "errors"

// Sentinel errors for locker operations.
// Wrap with fmt.Errorf("%w: details") and check with errors.Is.
var (
	// ErrLockerNotFound indicates the requested locker does not exist.
	ErrLockerNotFound = errors.New("locker: locker not found")

	// ErrLockerExists indicates a locker with the same ID or name already exists.
	ErrLockerExists = errors.New("locker: locker already exists")

	// ErrGroupNotFound indicates the requested group does not exist.
	ErrGroupNotFound = errors.New("locker: group not found")

	// ErrGroupExists indicates a group with the same name already exists.
	ErrGroupExists = errors.New("locker: group already exists")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("locker: invalid status")
)
