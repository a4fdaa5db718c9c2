package member

import "errors"

// Sentinel errors for member operations.
// Wrap with fmt.Errorf("%w: details") and check with errors.Is.
var (
	// ErrMemberNotFound indicates the requested member does not exist.
	ErrMemberNotFound = errors.New("member: member not found")

	// ErrMemberExists indicates a member with the same ID already exists.
	ErrMemberExists = errors.New("member: member already exists")

	// ErrTagConflict indicates another member already holds the RFID tag.
	ErrTagConflict = errors.New("member: rfid tag already in use")

	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = errors.New("member: invalid role")
)
