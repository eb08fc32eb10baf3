package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	"github.com/noah-isme/assignment-portal-api/internal/repository"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
)

type submissionRepository interface {
	CreateIfAbsent(ctx context.Context, submission *models.Submission) error
	FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error)
	MarkReviewed(ctx context.Context, id string) error
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

// CreateSubmissionRequest represents payload for submitting an answer.
type CreateSubmissionRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Answer       string `json:"answer" validate:"required,max=5000"`
}

// SubmissionService guards submission admission: one submission per
// student per assignment, only against published assignments, only
// before the due date. It also owns the review flag.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentReader
	policy      *AccessPolicy
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(repo submissionRepository, assignments assignmentReader, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewAccessPolicy()
	}
	return &SubmissionService{repo: repo, assignments: assignments, policy: policy, validator: validate, logger: logger, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// Create admits a student's submission. The duplicate check is not done
// here: the insert itself is conditional on the unique pair, so two
// concurrent attempts resolve at the storage layer and the loser gets
// ALREADY_SUBMITTED rather than a server error.
func (s *SubmissionService) Create(ctx context.Context, claims *models.JWTClaims, req CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.policy.RequireRole(claims, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.Status != models.AssignmentStatusPublished {
		s.metrics.RecordSubmission("unavailable")
		return nil, appErrors.Clone(appErrors.ErrNotAvailable, "assignment is not available for submission")
	}
	if s.now().After(assignment.DueDate) {
		s.metrics.RecordSubmission("deadline")
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "assignment due date has passed")
	}

	submission := &models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    claims.UserID,
		Answer:       req.Answer,
		Reviewed:     false,
	}
	if err := s.repo.CreateIfAbsent(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			s.metrics.RecordSubmission("duplicate")
			return nil, appErrors.Clone(appErrors.ErrAlreadySubmitted, "you have already submitted this assignment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	s.metrics.RecordSubmission("accepted")
	return submission, nil
}

// ListForAssignment returns every submission to an assignment the
// caller owns.
func (s *SubmissionService) ListForAssignment(ctx context.Context, claims *models.JWTClaims, assignmentID string) ([]models.SubmissionDetail, error) {
	if _, err := s.ownedAssignment(ctx, claims, assignmentID); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// ListMine returns the calling student's submissions.
func (s *SubmissionService) ListMine(ctx context.Context, claims *models.JWTClaims) ([]models.SubmissionDetail, error) {
	if err := s.policy.RequireRole(claims, models.RoleStudent); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListByStudent(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Get returns a single submission. Students may read only their own;
// teachers only submissions to assignments they created.
func (s *SubmissionService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.SubmissionDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	switch claims.Role {
	case models.RoleStudent:
		if err := s.policy.RequireOwner(claims, detail.StudentID); err != nil {
			return nil, err
		}
	case models.RoleTeacher:
		if _, err := s.ownedAssignment(ctx, claims, detail.AssignmentID); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// MarkReviewed flips the reviewed flag. Re-marking an already-reviewed
// submission succeeds without changing anything.
func (s *SubmissionService) MarkReviewed(ctx context.Context, claims *models.JWTClaims, id string) (*models.SubmissionDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if _, err := s.ownedAssignment(ctx, claims, detail.AssignmentID); err != nil {
		return nil, err
	}

	if !detail.Reviewed {
		if err := s.repo.MarkReviewed(ctx, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark submission reviewed")
		}
		detail.Reviewed = true
	}
	return detail, nil
}

func (s *SubmissionService) ownedAssignment(ctx context.Context, claims *models.JWTClaims, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.policy.RequireOwner(claims, assignment.CreatedBy); err != nil {
		return nil, err
	}
	return assignment, nil
}
