package locker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GroupRepository defines the interface for group persistence operations.
type GroupRepository interface {
	// GetByID retrieves a group with its locker memberships.
	// Returns ErrGroupNotFound if the group does not exist.
	GetByID(ctx context.Context, id string) (*Group, error)

	// List retrieves all groups with their locker memberships.
	List(ctx context.Context) ([]Group, error)

	// GetForLocker retrieves the group containing the given locker.
	// Returns ErrGroupNotFound if the locker belongs to no group.
	GetForLocker(ctx context.Context, lockerID string) (*Group, error)

	// Create inserts a new group and its membership rows.
	// Returns ErrGroupExists if a group with the same name exists.
	Create(ctx context.Context, g *Group) error

	// Update modifies a group and replaces its membership rows.
	// Returns ErrGroupNotFound if the group does not exist.
	Update(ctx context.Context, g *Group) error

	// Delete removes a group; membership rows cascade.
	// Returns ErrGroupNotFound if the group does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteGroupRepository implements GroupRepository using SQLite.
type SQLiteGroupRepository struct {
	db *sql.DB
}

// NewSQLiteGroupRepository creates a new SQLite-backed group repository.
func NewSQLiteGroupRepository(db *sql.DB) *SQLiteGroupRepository {
	return &SQLiteGroupRepository{db: db}
}

// GetByID retrieves a group with its locker memberships.
func (r *SQLiteGroupRepository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `SELECT id, name, color, created_at, updated_at FROM locker_groups WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group by id: %w", err)
	}

	if err := r.loadMembers(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// List retrieves all groups with their locker memberships.
func (r *SQLiteGroupRepository) List(ctx context.Context) ([]Group, error) {
	query := `SELECT id, name, color, created_at, updated_at FROM locker_groups ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}

	for i := range groups {
		if err := r.loadMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// GetForLocker retrieves the group containing the given locker.
func (r *SQLiteGroupRepository) GetForLocker(ctx context.Context, lockerID string) (*Group, error) {
	query := `
		SELECT g.id, g.name, g.color, g.created_at, g.updated_at
		FROM locker_groups g
		JOIN locker_group_members m ON m.group_id = g.id
		WHERE m.locker_id = ?
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, lockerID)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group for locker: %w", err)
	}

	if err := r.loadMembers(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts a new group and its membership rows.
func (r *SQLiteGroupRepository) Create(ctx context.Context, g *Group) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		`INSERT INTO locker_groups (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Color,
		g.CreatedAt.Format(time.RFC3339),
		g.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrGroupExists
		}
		return fmt.Errorf("inserting group: %w", err)
	}

	if err := insertGroupMembers(ctx, tx, g, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group create: %w", err)
	}
	return nil
}

// Update modifies a group and replaces its membership rows.
func (r *SQLiteGroupRepository) Update(ctx context.Context, g *Group) error {
	now := time.Now().UTC()
	g.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx,
		`UPDATE locker_groups SET name = ?, color = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Color, g.UpdatedAt.Format(time.RFC3339), g.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrGroupExists
		}
		return fmt.Errorf("updating group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	// Replace membership rows wholesale; the set is small.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM locker_group_members WHERE group_id = ?`, g.ID,
	); err != nil {
		return fmt.Errorf("clearing group members: %w", err)
	}

	if err := insertGroupMembers(ctx, tx, g, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group update: %w", err)
	}
	return nil
}

// Delete removes a group; membership rows cascade.
func (r *SQLiteGroupRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM locker_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	return nil
}

// loadMembers populates a group's LockerIDs from the join table.
func (r *SQLiteGroupRepository) loadMembers(ctx context.Context, g *Group) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT locker_id FROM locker_group_members WHERE group_id = ? ORDER BY locker_id`,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("querying group members: %w", err)
	}
	defer rows.Close()

	g.LockerIDs = nil
	for rows.Next() {
		var lockerID string
		if err := rows.Scan(&lockerID); err != nil {
			return fmt.Errorf("scanning group member: %w", err)
		}
		g.LockerIDs = append(g.LockerIDs, lockerID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating group members: %w", err)
	}

	return nil
}

// insertGroupMembers inserts the membership rows for a group.
func insertGroupMembers(ctx context.Context, tx *sql.Tx, g *Group, now time.Time) error {
	for _, lockerID := range g.LockerIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO locker_group_members (group_id, locker_id, created_at) VALUES (?, ?, ?)`,
			g.ID, lockerID, now.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting group member %s: %w", lockerID, err)
		}
	}
	return nil
}

// scanGroup scans a row or rows result into a Group (without members).
func scanGroup(scanner rowScanner) (*Group, error) {
	var g Group
	var createdAt, updatedAt string

	if err := scanner.Scan(&g.ID, &g.Name, &g.Color, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var parseErr error
	g.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	g.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &g, nil
}
