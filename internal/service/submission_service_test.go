package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	"github.com/noah-isme/assignment-portal-api/internal/repository"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	details     map[string]models.SubmissionDetail
	created     *models.Submission
	duplicate   bool
	reviewed    []string
}

func (m *mockSubmissionRepo) CreateIfAbsent(ctx context.Context, submission *models.Submission) error {
	if m.duplicate {
		return repository.ErrDuplicateSubmission
	}
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "new-submission"
	}
	m.submissions[submission.ID] = *submission
	m.created = submission
	return nil
}

func (m *mockSubmissionRepo) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	var list []models.SubmissionDetail
	for _, d := range m.details {
		if d.AssignmentID == assignmentID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *mockSubmissionRepo) ListByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	var list []models.SubmissionDetail
	for _, d := range m.details {
		if d.StudentID == studentID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *mockSubmissionRepo) MarkReviewed(ctx context.Context, id string) error {
	m.reviewed = append(m.reviewed, id)
	if d, ok := m.details[id]; ok {
		d.Reviewed = true
		m.details[id] = d
	}
	return nil
}

type mockAssignmentReader struct {
	assignments map[string]models.Assignment
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func newSubmissionServiceForTest(repo *mockSubmissionRepo, assignments *mockAssignmentReader) *SubmissionService {
	return NewSubmissionService(repo, assignments, NewAccessPolicy(), validator.New(), zap.NewNop(), nil)
}

func publishedAssignment(id, owner string, due time.Time) models.Assignment {
	return models.Assignment{ID: id, CreatedBy: owner, Status: models.AssignmentStatusPublished, DueDate: due}
}

func TestSubmissionServiceCreate(t *testing.T) {
	repo := &mockSubmissionRepo{}
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().UTC().Add(time.Hour)),
	}}
	svc := newSubmissionServiceForTest(repo, assignments)

	submission, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "my answer"})
	require.NoError(t, err)
	assert.Equal(t, "s1", submission.StudentID)
	assert.Equal(t, "a1", submission.AssignmentID)
	assert.False(t, submission.Reviewed)
	require.NotNil(t, repo.created)
}

func TestSubmissionServiceCreateRejectsTeacher(t *testing.T) {
	svc := newSubmissionServiceForTest(&mockSubmissionRepo{}, &mockAssignmentReader{})

	_, err := svc.Create(context.Background(), teacherClaims("t1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSubmissionServiceCreateMissingAssignment(t *testing.T) {
	svc := newSubmissionServiceForTest(&mockSubmissionRepo{}, &mockAssignmentReader{})

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "nope", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmissionServiceCreateRejectsDraft(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft, DueDate: time.Now().Add(time.Hour)},
	}}
	svc := newSubmissionServiceForTest(&mockSubmissionRepo{}, assignments)

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotAvailable.Code, appErr.Code)
}

func TestSubmissionServiceCreateRejectsCompleted(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusCompleted, DueDate: time.Now().Add(time.Hour)},
	}}
	svc := newSubmissionServiceForTest(&mockSubmissionRepo{}, assignments)

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotAvailable.Code, appErr.Code)
}

func TestSubmissionServiceCreateRejectsAfterDeadline(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().UTC().Add(-time.Minute)),
	}}
	repo := &mockSubmissionRepo{}
	svc := newSubmissionServiceForTest(repo, assignments)

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDeadlinePassed.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestSubmissionServiceCreateDuplicate(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().UTC().Add(time.Hour)),
	}}
	svc := newSubmissionServiceForTest(&mockSubmissionRepo{duplicate: true}, assignments)

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateSubmissionRequest{AssignmentID: "a1", Answer: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadySubmitted.Code, appErr.Code)
}

func TestSubmissionServiceListForAssignmentOwnerOnly(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().Add(time.Hour)),
	}}
	repo := &mockSubmissionRepo{details: map[string]models.SubmissionDetail{
		"sub1": {Submission: models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"}},
	}}
	svc := newSubmissionServiceForTest(repo, assignments)

	list, err := svc.ListForAssignment(context.Background(), teacherClaims("t1"), "a1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.ListForAssignment(context.Background(), teacherClaims("t2"), "a1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSubmissionServiceListMine(t *testing.T) {
	repo := &mockSubmissionRepo{details: map[string]models.SubmissionDetail{
		"sub1": {Submission: models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"}},
		"sub2": {Submission: models.Submission{ID: "sub2", AssignmentID: "a2", StudentID: "s2"}},
	}}
	svc := newSubmissionServiceForTest(repo, &mockAssignmentReader{})

	list, err := svc.ListMine(context.Background(), studentClaims("s1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sub1", list[0].ID)
}

func TestSubmissionServiceGetAccessRules(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().Add(time.Hour)),
	}}
	repo := &mockSubmissionRepo{details: map[string]models.SubmissionDetail{
		"sub1": {Submission: models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"}},
	}}
	svc := newSubmissionServiceForTest(repo, assignments)

	detail, err := svc.Get(context.Background(), studentClaims("s1"), "sub1")
	require.NoError(t, err)
	assert.Equal(t, "sub1", detail.ID)

	detail, err = svc.Get(context.Background(), teacherClaims("t1"), "sub1")
	require.NoError(t, err)
	assert.Equal(t, "sub1", detail.ID)

	_, err = svc.Get(context.Background(), studentClaims("s2"), "sub1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), teacherClaims("t2"), "sub1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceMarkReviewedIdempotent(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().Add(time.Hour)),
	}}
	repo := &mockSubmissionRepo{details: map[string]models.SubmissionDetail{
		"sub1": {Submission: models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"}},
	}}
	svc := newSubmissionServiceForTest(repo, assignments)

	detail, err := svc.MarkReviewed(context.Background(), teacherClaims("t1"), "sub1")
	require.NoError(t, err)
	assert.True(t, detail.Reviewed)
	require.Len(t, repo.reviewed, 1)

	detail, err = svc.MarkReviewed(context.Background(), teacherClaims("t1"), "sub1")
	require.NoError(t, err)
	assert.True(t, detail.Reviewed)
	require.Len(t, repo.reviewed, 1)
}

func TestSubmissionServiceMarkReviewedRejectsForeignTeacher(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": publishedAssignment("a1", "t1", time.Now().Add(time.Hour)),
	}}
	repo := &mockSubmissionRepo{details: map[string]models.SubmissionDetail{
		"sub1": {Submission: models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"}},
	}}
	svc := newSubmissionServiceForTest(repo, assignments)

	_, err := svc.MarkReviewed(context.Background(), teacherClaims("t2"), "sub1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.reviewed)
}
