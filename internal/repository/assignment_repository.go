package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/assignment-portal-api/internal/models"
)

// AssignmentRepository handles persistence of assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// List returns assignments matching the filter, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	base := `SELECT a.id, a.title, a.description, a.due_date, a.created_by, a.status, a.created_at, a.updated_at,
        u.full_name AS created_by_name
        FROM assignments a
        LEFT JOIN users u ON u.id = a.created_by`
	var conditions []string
	var args []interface{}

	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("a.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.created_at DESC"

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListWithCounts returns assignments plus their submission totals.
func (r *AssignmentRepository) ListWithCounts(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentWithCount, error) {
	base := `SELECT a.id, a.title, a.description, a.due_date, a.created_by, a.status, a.created_at, a.updated_at,
        u.full_name AS created_by_name,
        COUNT(s.id) AS submission_count
        FROM assignments a
        LEFT JOIN users u ON u.id = a.created_by
        LEFT JOIN submissions s ON s.assignment_id = a.id`
	var conditions []string
	var args []interface{}

	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("a.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY a.id, u.full_name ORDER BY a.created_at DESC"

	var assignments []models.AssignmentWithCount
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments with counts: %w", err)
	}
	return assignments, nil
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, title, description, due_date, created_by, status, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindDetailByID returns an assignment with the creator's name.
func (r *AssignmentRepository) FindDetailByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	const query = `SELECT a.id, a.title, a.description, a.due_date, a.created_by, a.status, a.created_at, a.updated_at,
        u.full_name AS created_by_name
        FROM assignments a
        LEFT JOIN users u ON u.id = a.created_by
        WHERE a.id = $1`
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountSubmissions returns the number of submissions referencing the assignment.
func (r *AssignmentRepository) CountSubmissions(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE assignment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// Create persists a new assignment record in draft status.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusDraft
	}
	const query = `INSERT INTO assignments (id, title, description, due_date, created_by, status, created_at, updated_at)
        VALUES (:id, :title, :description, :due_date, :created_by, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update replaces the mutable content fields of an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// UpdateStatusGuarded advances the status only if the stored value still
// matches the expected one. Returns false when another writer got there
// first, so callers can reject the transition instead of overwriting.
func (r *AssignmentRepository) UpdateStatusGuarded(ctx context.Context, id string, from, to models.AssignmentStatus) (bool, error) {
	const query = `UPDATE assignments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update assignment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update assignment status: %w", err)
	}
	return affected == 1, nil
}

// Delete removes an assignment record.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
