package locker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for locker persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a locker by its unique identifier.
	// Returns ErrLockerNotFound if the locker does not exist.
	GetByID(ctx context.Context, id string) (*Locker, error)

	// GetByName retrieves a locker by its unique name.
	// Returns ErrLockerNotFound if the locker does not exist.
	GetByName(ctx context.Context, name string) (*Locker, error)

	// List retrieves all lockers ordered by name.
	List(ctx context.Context) ([]Locker, error)

	// ListByStatus retrieves all lockers with the given status.
	ListByStatus(ctx context.Context, status Status) ([]Locker, error)

	// Create inserts a new locker.
	// Returns ErrLockerExists if a locker with the same ID or name exists.
	Create(ctx context.Context, l *Locker) error

	// Update modifies an existing locker.
	// Returns ErrLockerNotFound if the locker does not exist.
	Update(ctx context.Context, l *Locker) error

	// Delete removes a locker by ID.
	// Returns ErrLockerNotFound if the locker does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateHeartbeat refreshes liveness fields from a controller
	// heartbeat. Optimised for the high-frequency heartbeat path.
	UpdateHeartbeat(ctx context.Context, id, ipAddress string, uptimeSeconds int64, at time.Time) error

	// SetOnline flips only the online flag.
	SetOnline(ctx context.Context, id string, online bool) error
}

// lockerColumns is the SELECT column list shared by all queries.
const lockerColumns = `id, name, ip_address, topic, lock_index, status, online,
		last_heartbeat_at, uptime_seconds, assigned_member_id, last_used_at,
		metadata, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a locker by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Locker, error) {
	query := `SELECT ` + lockerColumns + ` FROM lockers WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	l, err := scanLocker(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLockerNotFound
		}
		return nil, fmt.Errorf("querying locker by id: %w", err)
	}
	return l, nil
}

// GetByName retrieves a locker by its unique name.
func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*Locker, error) {
	query := `SELECT ` + lockerColumns + ` FROM lockers WHERE name = ?`

	row := r.db.QueryRowContext(ctx, query, name)
	l, err := scanLocker(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLockerNotFound
		}
		return nil, fmt.Errorf("querying locker by name: %w", err)
	}
	return l, nil
}

// List retrieves all lockers ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Locker, error) {
	query := `SELECT ` + lockerColumns + ` FROM lockers ORDER BY name`
	return r.queryLockers(ctx, query)
}

// ListByStatus retrieves all lockers with the given status.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status) ([]Locker, error) {
	query := `SELECT ` + lockerColumns + ` FROM lockers WHERE status = ? ORDER BY name`
	return r.queryLockers(ctx, query, string(status))
}

// Create inserts a new locker.
func (r *SQLiteRepository) Create(ctx context.Context, l *Locker) error {
	if !l.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, l.Status)
	}

	metadataJSON, err := json.Marshal(metadataOrEmpty(l.Metadata))
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	query := `
		INSERT INTO lockers (
			id, name, ip_address, topic, lock_index, status, online,
			last_heartbeat_at, uptime_seconds, assigned_member_id, last_used_at,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		l.ID,
		l.Name,
		l.IPAddress,
		l.Topic,
		l.LockIndex,
		string(l.Status),
		boolToInt(l.Online),
		nullableTime(l.LastHeartbeatAt),
		l.UptimeSeconds,
		nullableString(l.AssignedMemberID),
		nullableTime(l.LastUsedAt),
		string(metadataJSON),
		l.CreatedAt.Format(time.RFC3339),
		l.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrLockerExists
		}
		return fmt.Errorf("inserting locker: %w", err)
	}

	return nil
}

// Update modifies an existing locker.
func (r *SQLiteRepository) Update(ctx context.Context, l *Locker) error {
	if !l.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, l.Status)
	}

	metadataJSON, err := json.Marshal(metadataOrEmpty(l.Metadata))
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	l.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE lockers SET
			name = ?, ip_address = ?, topic = ?, lock_index = ?, status = ?,
			online = ?, last_heartbeat_at = ?, uptime_seconds = ?,
			assigned_member_id = ?, last_used_at = ?, metadata = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		l.Name,
		l.IPAddress,
		l.Topic,
		l.LockIndex,
		string(l.Status),
		boolToInt(l.Online),
		nullableTime(l.LastHeartbeatAt),
		l.UptimeSeconds,
		nullableString(l.AssignedMemberID),
		nullableTime(l.LastUsedAt),
		string(metadataJSON),
		l.UpdatedAt.Format(time.RFC3339),
		l.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrLockerExists
		}
		return fmt.Errorf("updating locker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLockerNotFound
	}

	return nil
}

// Delete removes a locker by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM lockers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting locker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLockerNotFound
	}

	return nil
}

// UpdateHeartbeat refreshes liveness fields from a controller heartbeat.
func (r *SQLiteRepository) UpdateHeartbeat(ctx context.Context, id, ipAddress string, uptimeSeconds int64, at time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE lockers
		SET ip_address = ?, uptime_seconds = ?, online = 1,
		    last_heartbeat_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		ipAddress,
		uptimeSeconds,
		at.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating locker heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLockerNotFound
	}

	return nil
}

// SetOnline flips only the online flag.
func (r *SQLiteRepository) SetOnline(ctx context.Context, id string, online bool) error {
	now := time.Now().UTC()
	query := `UPDATE lockers SET online = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(online),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating locker online flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLockerNotFound
	}

	return nil
}

// queryLockers executes a query and returns a slice of lockers.
func (r *SQLiteRepository) queryLockers(ctx context.Context, query string, args ...any) ([]Locker, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lockers: %w", err)
	}
	defer rows.Close()

	var lockers []Locker
	for rows.Next() {
		l, err := scanLocker(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning locker: %w", err)
		}
		lockers = append(lockers, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lockers: %w", err)
	}

	return lockers, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLocker scans a row or rows result into a Locker.
func scanLocker(scanner rowScanner) (*Locker, error) {
	var l Locker
	var status string
	var online int
	var lastHeartbeatAt, lastUsedAt sql.NullString
	var assignedMemberID sql.NullString
	var metadataJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&l.ID,
		&l.Name,
		&l.IPAddress,
		&l.Topic,
		&l.LockIndex,
		&status,
		&online,
		&lastHeartbeatAt,
		&l.UptimeSeconds,
		&assignedMemberID,
		&lastUsedAt,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = Status(status)
	l.Online = online != 0

	if assignedMemberID.Valid {
		l.AssignedMemberID = &assignedMemberID.String
	}

	// Parse timestamps
	if lastHeartbeatAt.Valid {
		t, err := time.Parse(time.RFC3339, lastHeartbeatAt.String)
		if err == nil {
			l.LastHeartbeatAt = &t
		}
	}
	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err == nil {
			l.LastUsedAt = &t
		}
	}

	var parseErr error
	l.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	l.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &l.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &l, nil
}

// metadataOrEmpty ensures the metadata column is never NULL.
func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
