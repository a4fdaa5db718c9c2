package member

import "time"

// Role classifies how a member record came to exist.
type Role string

// Valid member roles.
const (
	// RoleMember is a regular gym member created through the API.
	RoleMember Role = "member"

	// RoleGuest is auto-created when an unknown tag is denied at a
	// reader; the tag is bound so a later scan can assign a locker.
	RoleGuest Role = "guest"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleGuest
}

// Member represents a gym member (or auto-created guest) who can hold
// a locker assignment.
//
// RFIDTag is unique across members whenever present: enforced by a
// repository pre-check and by a partial unique index in the schema.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`

	// RFIDTag is the scanned card/fob identity, nil when not enrolled.
	RFIDTag *string `json:"rfid_tag,omitempty"`

	// AssignedLockerID points at the occupied locker, nil when unassigned.
	// Kept bidirectionally consistent with Locker.AssignedMemberID.
	AssignedLockerID *string `json:"assigned_locker_id,omitempty"`

	// ValidUntil is when an automatic assignment expires, nil for none.
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Member.
func (m *Member) DeepCopy() *Member {
	if m == nil {
		return nil
	}

	cpy := *m

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}
