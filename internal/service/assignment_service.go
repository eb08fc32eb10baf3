package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
)

const publishedAssignmentsCacheKey = "assignments:published"

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
	ListWithCounts(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentWithCount, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindDetailByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	CountSubmissions(ctx context.Context, assignmentID string) (int, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	UpdateStatusGuarded(ctx context.Context, id string, from, to models.AssignmentStatus) (bool, error)
	Delete(ctx context.Context, id string) error
}

type assignmentCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CreateAssignmentRequest represents payload for creating assignments.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"required,max=1000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// UpdateAssignmentRequest represents payload for updating assignments.
// Omitted fields keep their stored values.
type UpdateAssignmentRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description" validate:"omitempty,min=1,max=1000"`
	DueDate     *time.Time `json:"due_date"`
}

// AssignmentService owns the assignment lifecycle: creation in draft,
// content edits while draft, the forward-only status machine and the
// delete preconditions.
type AssignmentService struct {
	repo      assignmentRepository
	cache     assignmentCache
	policy    *AccessPolicy
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, cache assignmentCache, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cacheTTL time.Duration) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewAccessPolicy()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &AssignmentService{repo: repo, cache: cache, policy: policy, validator: validate, logger: logger, metrics: metrics, cacheTTL: cacheTTL, now: func() time.Time { return time.Now().UTC() }}
}

// ListForTeacher returns the teacher's own assignments with submission
// counts, optionally narrowed by status.
func (s *AssignmentService) ListForTeacher(ctx context.Context, teacherID string, status models.AssignmentStatus) ([]models.AssignmentWithCount, error) {
	if status != "" && !models.ValidAssignmentStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	assignments, err := s.repo.ListWithCounts(ctx, models.AssignmentFilter{CreatedBy: teacherID, Status: status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListPublished returns every published assignment. The result is the
// same for all students, so it is served from the cache when warm.
func (s *AssignmentService) ListPublished(ctx context.Context) ([]models.AssignmentDetail, error) {
	if s.cache != nil {
		var cached []models.AssignmentDetail
		if err := s.cache.Get(ctx, publishedAssignmentsCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	assignments, err := s.repo.List(ctx, models.AssignmentFilter{Status: models.AssignmentStatusPublished})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, publishedAssignmentsCacheKey, assignments, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache published assignments", zap.Error(err))
		}
	}
	return assignments, nil
}

// Get returns a single assignment subject to visibility rules: teachers
// see only their own, students see only published ones. A non-published
// assignment is reported to students as not found so its existence does
// not leak.
func (s *AssignmentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	switch claims.Role {
	case models.RoleTeacher:
		if err := s.policy.RequireOwner(claims, detail.CreatedBy); err != nil {
			return nil, err
		}
	case models.RoleStudent:
		if detail.Status != models.AssignmentStatusPublished {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// Create registers a new assignment in draft owned by the caller.
func (s *AssignmentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.policy.RequireRole(claims, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !req.DueDate.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date must be in the future")
	}

	assignment := &models.Assignment{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DueDate:     req.DueDate.UTC(),
		CreatedBy:   claims.UserID,
		Status:      models.AssignmentStatusDraft,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	return &models.AssignmentDetail{Assignment: *assignment, CreatedByName: claims.FullName}, nil
}

// Update replaces supplied content fields. Only the owning teacher may
// edit, and only while the assignment is still a draft.
func (s *AssignmentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.AssignmentStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "can only edit draft assignments")
	}

	if req.Title != nil {
		assignment.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		assignment.Description = strings.TrimSpace(*req.Description)
	}
	if req.DueDate != nil {
		if !req.DueDate.After(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "due date must be in the future")
		}
		assignment.DueDate = req.DueDate.UTC()
	}

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	s.invalidatePublished(ctx)

	return &models.AssignmentDetail{Assignment: *assignment, CreatedByName: claims.FullName}, nil
}

// Transition advances the assignment through the status machine. The
// write is guarded by the status the caller observed, so a concurrent
// transition loses instead of silently overwriting.
func (s *AssignmentService) Transition(ctx context.Context, claims *models.JWTClaims, id string, target models.AssignmentStatus) (*models.AssignmentDetail, error) {
	if !models.ValidAssignmentStatus(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target status")
	}

	assignment, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(assignment.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot change status from %s to %s", assignment.Status, target))
	}

	ok, err := s.repo.UpdateStatusGuarded(ctx, id, assignment.Status, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "assignment status changed concurrently")
	}
	s.metrics.RecordTransition(string(target))
	s.invalidatePublished(ctx)

	assignment.Status = target
	return &models.AssignmentDetail{Assignment: *assignment, CreatedByName: claims.FullName}, nil
}

// Delete removes a draft assignment with no submissions.
func (s *AssignmentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	assignment, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return err
	}
	if assignment.Status != models.AssignmentStatusDraft {
		return appErrors.Clone(appErrors.ErrInvalidState, "can only delete draft assignments")
	}

	count, err := s.repo.CountSubmissions(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrHasSubmissions, "cannot delete assignment with existing submissions")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.invalidatePublished(ctx)
	return nil
}

func (s *AssignmentService) loadOwned(ctx context.Context, claims *models.JWTClaims, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
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

func (s *AssignmentService) invalidatePublished(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, publishedAssignmentsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate published assignments cache", zap.Error(err))
	}
}
