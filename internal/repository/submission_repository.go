package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/assignment-portal-api/internal/models"
)

// ErrDuplicateSubmission signals the unique (assignment_id, student_id)
// key already exists. Raised by CreateIfAbsent, mapped by the service.
var ErrDuplicateSubmission = errors.New("submission already exists for assignment and student")

// SubmissionRepository handles persistence of submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// CreateIfAbsent inserts the submission unless one already exists for
// the same (assignment_id, student_id) pair. The insert rides the
// unique index, so two concurrent attempts cannot both succeed: the
// conflict loser sees zero rows affected and ErrDuplicateSubmission.
func (r *SubmissionRepository) CreateIfAbsent(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, answer, submitted_at, reviewed)
        VALUES (:id, :assignment_id, :student_id, :answer, :submitted_at, :reviewed)
        ON CONFLICT (assignment_id, student_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateSubmission
	}
	return nil
}

// FindDetailByID returns a submission joined with student and assignment context.
func (r *SubmissionRepository) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.answer, s.submitted_at, s.reviewed,
        u.full_name AS student_name, u.email AS student_email,
        a.title AS assignment_title, a.due_date AS assignment_due
        FROM submissions s
        LEFT JOIN users u ON u.id = s.student_id
        LEFT JOIN assignments a ON a.id = s.assignment_id
        WHERE s.id = $1`
	var detail models.SubmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByAssignment returns all submissions for an assignment, newest first.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.answer, s.submitted_at, s.reviewed,
        u.full_name AS student_name, u.email AS student_email,
        a.title AS assignment_title, a.due_date AS assignment_due
        FROM submissions s
        LEFT JOIN users u ON u.id = s.student_id
        LEFT JOIN assignments a ON a.id = s.assignment_id
        WHERE s.assignment_id = $1
        ORDER BY s.submitted_at DESC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions by assignment: %w", err)
	}
	return submissions, nil
}

// ListByStudent returns all submissions created by a student, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.answer, s.submitted_at, s.reviewed,
        u.full_name AS student_name, u.email AS student_email,
        a.title AS assignment_title, a.due_date AS assignment_due
        FROM submissions s
        LEFT JOIN users u ON u.id = s.student_id
        LEFT JOIN assignments a ON a.id = s.assignment_id
        WHERE s.student_id = $1
        ORDER BY s.submitted_at DESC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, studentID); err != nil {
		return nil, fmt.Errorf("list submissions by student: %w", err)
	}
	return submissions, nil
}

// MarkReviewed sets reviewed to true. The write is idempotent; marking
// an already-reviewed submission changes nothing.
func (r *SubmissionRepository) MarkReviewed(ctx context.Context, id string) error {
	const query = `UPDATE submissions SET reviewed = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	return nil
}
