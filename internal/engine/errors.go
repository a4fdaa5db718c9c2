package engine

import "errors"

// Sentinel errors for engine operations.
// Wrap with fmt.Errorf("%w: details") and check with errors.Is.
var (
	// ErrLockerUnavailable indicates the locker cannot be assigned
	// (occupied or in maintenance).
	ErrLockerUnavailable = errors.New("engine: locker unavailable")

	// ErrAlreadyAssigned indicates the member already holds a locker.
	ErrAlreadyAssigned = errors.New("engine: member already assigned")

	// ErrNotAssigned indicates the locker has no assignment to release.
	ErrNotAssigned = errors.New("engine: locker not assigned")
)
