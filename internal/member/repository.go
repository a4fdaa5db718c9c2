package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for member persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a member by its unique identifier.
	// Returns ErrMemberNotFound if the member does not exist.
	GetByID(ctx context.Context, id string) (*Member, error)

	// GetByRFIDTag retrieves the member holding the given RFID tag.
	// Returns ErrMemberNotFound if no member holds the tag.
	GetByRFIDTag(ctx context.Context, tag string) (*Member, error)

	// GetByAssignedLocker retrieves the member assigned to a locker.
	// Returns ErrMemberNotFound if no member is assigned to it.
	GetByAssignedLocker(ctx context.Context, lockerID string) (*Member, error)

	// List retrieves all members ordered by name.
	List(ctx context.Context) ([]Member, error)

	// ListAssigned retrieves all members holding a locker assignment.
	ListAssigned(ctx context.Context) ([]Member, error)

	// ListExpired retrieves assigned members whose ValidUntil is before
	// the given instant. Used by the expiry reconciler.
	ListExpired(ctx context.Context, before time.Time) ([]Member, error)

	// Create inserts a new member.
	// Returns ErrMemberExists on a duplicate ID and ErrTagConflict when
	// another member already holds the RFID tag.
	Create(ctx context.Context, m *Member) error

	// Update modifies an existing member.
	// Returns ErrMemberNotFound if the member does not exist and
	// ErrTagConflict when the tag would collide with another member.
	Update(ctx context.Context, m *Member) error

	// Delete removes a member by ID.
	// Returns ErrMemberNotFound if the member does not exist.
	Delete(ctx context.Context, id string) error
}

// memberColumns is the SELECT column list shared by all queries.
const memberColumns = `id, name, role, rfid_tag, assigned_locker_id, valid_until,
		created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a member by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("querying member by id: %w", err)
	}
	return m, nil
}

// GetByRFIDTag retrieves the member holding the given RFID tag.
func (r *SQLiteRepository) GetByRFIDTag(ctx context.Context, tag string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE rfid_tag = ?`

	row := r.db.QueryRowContext(ctx, query, tag)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("querying member by rfid tag: %w", err)
	}
	return m, nil
}

// GetByAssignedLocker retrieves the member assigned to a locker.
func (r *SQLiteRepository) GetByAssignedLocker(ctx context.Context, lockerID string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE assigned_locker_id = ?`

	row := r.db.QueryRowContext(ctx, query, lockerID)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("querying member by assigned locker: %w", err)
	}
	return m, nil
}

// List retrieves all members ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY name`
	return r.queryMembers(ctx, query)
}

// ListAssigned retrieves all members holding a locker assignment.
func (r *SQLiteRepository) ListAssigned(ctx context.Context) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE assigned_locker_id IS NOT NULL ORDER BY name`
	return r.queryMembers(ctx, query)
}

// ListExpired retrieves assigned members whose ValidUntil has passed.
func (r *SQLiteRepository) ListExpired(ctx context.Context, before time.Time) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE assigned_locker_id IS NOT NULL
		  AND valid_until IS NOT NULL
		  AND valid_until < ?
		ORDER BY valid_until`
	return r.queryMembers(ctx, query, before.UTC().Format(time.RFC3339))
}

// Create inserts a new member.
func (r *SQLiteRepository) Create(ctx context.Context, m *Member) error {
	if !m.Role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}

	// Pre-check tag uniqueness so callers get the typed error rather
	// than a constraint failure. The partial unique index still backs
	// this up against races.
	if m.RFIDTag != nil && *m.RFIDTag != "" {
		if err := r.checkTagAvailable(ctx, *m.RFIDTag, m.ID); err != nil {
			return err
		}
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `
		INSERT INTO members (
			id, name, role, rfid_tag, assigned_locker_id, valid_until,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.Name,
		string(m.Role),
		nullableString(m.RFIDTag),
		nullableString(m.AssignedLockerID),
		nullableTime(m.ValidUntil),
		m.CreatedAt.Format(time.RFC3339),
		m.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "rfid_tag") {
				return ErrTagConflict
			}
			return ErrMemberExists
		}
		return fmt.Errorf("inserting member: %w", err)
	}

	return nil
}

// Update modifies an existing member.
func (r *SQLiteRepository) Update(ctx context.Context, m *Member) error {
	if !m.Role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}

	if m.RFIDTag != nil && *m.RFIDTag != "" {
		if err := r.checkTagAvailable(ctx, *m.RFIDTag, m.ID); err != nil {
			return err
		}
	}

	m.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE members SET
			name = ?, role = ?, rfid_tag = ?, assigned_locker_id = ?,
			valid_until = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		m.Name,
		string(m.Role),
		nullableString(m.RFIDTag),
		nullableString(m.AssignedLockerID),
		nullableTime(m.ValidUntil),
		m.UpdatedAt.Format(time.RFC3339),
		m.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTagConflict
		}
		return fmt.Errorf("updating member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// Delete removes a member by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// checkTagAvailable returns ErrTagConflict when a different member
// already holds the tag.
func (r *SQLiteRepository) checkTagAvailable(ctx context.Context, tag, selfID string) error {
	var holder string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM members WHERE rfid_tag = ? AND id != ?`, tag, selfID,
	).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking rfid tag: %w", err)
	}
	return fmt.Errorf("%w: held by %s", ErrTagConflict, holder)
}

// queryMembers executes a query and returns a slice of members.
func (r *SQLiteRepository) queryMembers(ctx context.Context, query string, args ...any) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating members: %w", err)
	}

	return members, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMember scans a row or rows result into a Member.
func scanMember(scanner rowScanner) (*Member, error) {
	var m Member
	var role string
	var rfidTag, assignedLockerID, validUntil sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&m.ID,
		&m.Name,
		&role,
		&rfidTag,
		&assignedLockerID,
		&validUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Role = Role(role)

	if rfidTag.Valid {
		m.RFIDTag = &rfidTag.String
	}
	if assignedLockerID.Valid {
		m.AssignedLockerID = &assignedLockerID.String
	}
	if validUntil.Valid {
		t, err := time.Parse(time.RFC3339, validUntil.String)
		if err == nil {
			m.ValidUntil = &t
		}
	}

	var parseErr error
	m.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	m.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &m, nil
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

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
