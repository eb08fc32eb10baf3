package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-portal-api/internal/middleware"
	"github.com/noah-isme/assignment-portal-api/internal/models"
	"github.com/noah-isme/assignment-portal-api/internal/service"
)

type assignmentRepoStub struct {
	assignments map[string]models.Assignment
	counts      map[string]int
	deleted     []string
}

func (s *assignmentRepoStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	var list []models.AssignmentDetail
	for _, a := range s.assignments {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
			continue
		}
		list = append(list, models.AssignmentDetail{Assignment: a})
	}
	return list, nil
}

func (s *assignmentRepoStub) ListWithCounts(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentWithCount, error) {
	details, _ := s.List(ctx, filter)
	var list []models.AssignmentWithCount
	for _, d := range details {
		list = append(list, models.AssignmentWithCount{AssignmentDetail: d, SubmissionCount: s.counts[d.ID]})
	}
	return list, nil
}

func (s *assignmentRepoStub) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := s.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) FindDetailByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if a, ok := s.assignments[id]; ok {
		return &models.AssignmentDetail{Assignment: a}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) CountSubmissions(ctx context.Context, assignmentID string) (int, error) {
	return s.counts[assignmentID], nil
}

func (s *assignmentRepoStub) Create(ctx context.Context, assignment *models.Assignment) error {
	if s.assignments == nil {
		s.assignments = make(map[string]models.Assignment)
	}
	if assignment.ID == "" {
		assignment.ID = "created"
	}
	s.assignments[assignment.ID] = *assignment
	return nil
}

func (s *assignmentRepoStub) Update(ctx context.Context, assignment *models.Assignment) error {
	s.assignments[assignment.ID] = *assignment
	return nil
}

func (s *assignmentRepoStub) UpdateStatusGuarded(ctx context.Context, id string, from, to models.AssignmentStatus) (bool, error) {
	a, ok := s.assignments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	s.assignments[id] = a
	return true, nil
}

func (s *assignmentRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.assignments, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func newAssignmentHandlerForTest(repo *assignmentRepoStub) *AssignmentHandler {
	svc := service.NewAssignmentService(repo, nil, service.NewAccessPolicy(), nil, zap.NewNop(), nil, time.Minute)
	return NewAssignmentHandler(svc)
}

func withClaims(c *gin.Context, claims *models.JWTClaims) {
	c.Set(middleware.ContextUserKey, claims)
}

func TestAssignmentHandlerListTeacherBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{
		assignments: map[string]models.Assignment{
			"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft},
			"a2": {ID: "a2", CreatedBy: "t2", Status: models.AssignmentStatusPublished},
		},
		counts: map[string]int{"a1": 1},
	}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/assignments", nil)
	c.Request = req
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.AssignmentWithCount `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "a1", envelope.Data[0].ID)
	assert.Equal(t, 1, envelope.Data[0].SubmissionCount)
}

func TestAssignmentHandlerListStudentSeesPublishedOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft},
		"a2": {ID: "a2", CreatedBy: "t1", Status: models.AssignmentStatusPublished},
	}}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/assignments", nil)
	c.Request = req
	withClaims(c, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.AssignmentDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "a2", envelope.Data[0].ID)
}

func TestAssignmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]interface{}{
		"title":       "Homework",
		"description": "Read chapter one",
		"due_date":    time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	req, _ := http.NewRequest(http.MethodPost, "/assignments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher, FullName: "Ana"})

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.AssignmentDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.AssignmentStatusDraft, envelope.Data.Status)
	assert.Equal(t, "t1", envelope.Data.CreatedBy)
}

func TestAssignmentHandlerUpdateStatusInvalidTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft},
	}}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(UpdateStatusRequest{Status: models.AssignmentStatusCompleted})
	req, _ := http.NewRequest(http.MethodPut, "/assignments/a1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	h.UpdateStatus(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignmentHandlerUpdateStatusMissingBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAssignmentHandlerForTest(&assignmentRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/assignments/a1/status", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	h.UpdateStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignmentHandlerDeleteWithSubmissionsConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{
		assignments: map[string]models.Assignment{
			"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft},
		},
		counts: map[string]int{"a1": 1},
	}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/assignments/a1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	h.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, repo.deleted)
}

func TestAssignmentHandlerGetNotFoundForStudentOnDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assignmentRepoStub{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", CreatedBy: "t1", Status: models.AssignmentStatusDraft},
	}}
	h := newAssignmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/assignments/a1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
