package locker

import "time"

// Status represents the assignment state of a locker.
type Status string

// Valid locker statuses.
const (
	// StatusAvailable means the locker is free to be assigned.
	StatusAvailable Status = "available"

	// StatusOccupied means the locker is assigned to a member.
	StatusOccupied Status = "occupied"

	// StatusMaintenance means the locker is out of service and must
	// never be auto-assigned.
	StatusMaintenance Status = "maintenance"
)

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// Locker represents a single physical locker compartment.
//
// Two lockers typically share one controller (a bank): the controller
// reports as "{base}-{lockCount}" and the compartments are addressed
// as "{base}A" and "{base}B". This matches the database schema in
// migrations/20260301_120000_initial_schema.up.sql.
type Locker struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Physical address
	IPAddress string `json:"ip_address"`
	Topic     string `json:"topic"`
	LockIndex int    `json:"lock_index"`

	// Assignment state
	Status           Status  `json:"status"`
	AssignedMemberID *string `json:"assigned_member_id,omitempty"`

	// Liveness
	Online          bool       `json:"online"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`

	// Metadata is free-form (e.g. auto_discovered flag).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Locker.
// The metadata map is cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (l *Locker) DeepCopy() *Locker {
	if l == nil {
		return nil
	}

	cpy := *l // Shallow copy of value fields

	cpy.Metadata = deepCopyMap(l.Metadata)

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// Group is a named set of lockers with a display color.
//
// The engine reads groups as a capacity-fallback scope for RFID
// assignment; group membership is managed through the API.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`

	// LockerIDs are the lockers belonging to this group.
	LockerIDs []string `json:"locker_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Group.
func (g *Group) DeepCopy() *Group {
	if g == nil {
		return nil
	}

	cpy := *g

	if g.LockerIDs != nil {
		cpy.LockerIDs = make([]string, len(g.LockerIDs))
		copy(cpy.LockerIDs, g.LockerIDs)
	}

	return &cpy
}

// Contains reports whether the group contains the given locker.
func (g *Group) Contains(lockerID string) bool {
	for _, id := range g.LockerIDs {
		if id == lockerID {
			return true
		}
	}
	return false
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
