// Package activity provides the append-only activity log: every engine
// decision (assignment, denial, discovery, expiry, orphan repair) is
// recorded here for auditing.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine decision action tags.
const (
	ActionHeartbeat        = "heartbeat"
	ActionLockerDiscovered = "locker-discovered"
	ActionUnlockAssigned   = "unlock-assigned"
	ActionAutoAssign       = "auto-assign"
	ActionAutoAssignGroup  = "auto-assign-same-group"
	ActionAccessDenied     = "access-denied"
	ActionUnknownTag       = "unknown-tag"
	ActionGuestCreated     = "guest-created"
	ActionAutoExpire       = "auto-expire"
	ActionCleanupOrphaned  = "cleanup-orphaned"
	ActionOfflineBatch     = "offline-batch"
	ActionManualUnlock     = "manual-unlock"
	ActionManualAssign     = "manual-assign"
	ActionManualRelease    = "manual-release"
)

// Entry represents a single activity log record.
type Entry struct {
	ID        string         `json:"id"`
	MemberID  string         `json:"member_id,omitempty"`
	LockerID  string         `json:"locker_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Action   string // optional: filter by action tag
	MemberID string // optional: filter by member
	LockerID string // optional: filter by locker
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated activity log results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for activity log operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores activity logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new activity log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new activity entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "act-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling activity details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, member_id, locker_id, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullableString(entry.MemberID),
		nullableString(entry.LockerID),
		entry.Action,
		detailsJSON,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting activity log: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns activity entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for activity queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.MemberID != "" {
		conditions = append(conditions, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.LockerID != "" {
		conditions = append(conditions, "locker_id = ?")
		args = append(args, filter.LockerID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, member_id, locker_id, action, details, created_at FROM activity_logs %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var memberID, lockerID, detailsJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &memberID, &lockerID,
			&entry.Action, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity log: %w", err)
		}

		if memberID.Valid {
			entry.MemberID = memberID.String
		}
		if lockerID.Valid {
			entry.LockerID = lockerID.String
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				entry.Details = details
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing activity log timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity logs: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
