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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	created       *models.User
	revoked       []string
	revokedAllFor []string
	auditActions  []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		usersByID:     make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.users[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.addUser(user)
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	now := time.Now().UTC()
	for _, rt := range m.refreshTokens {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "assignment-portal-api",
	}
}

func newAuthServiceForTest(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthServiceForTest(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Ana Teacher",
		Email:    "Ana@Example.com",
		Password: "secret123",
		Role:     models.RoleTeacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	require.NotNil(t, repo.created)
	assert.Equal(t, "ana@example.com", repo.created.Email)
	assert.True(t, repo.created.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("secret123")))
	assert.Contains(t, repo.auditActions, models.AuditActionRegister)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "taken@example.com", Role: models.RoleStudent, Active: true})
	svc := newAuthServiceForTest(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Dup",
		Email:    "taken@example.com",
		Password: "secret123",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsUnknownRole(t *testing.T) {
	svc := newAuthServiceForTest(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Bad Role",
		Email:    "bad@example.com",
		Password: "secret123",
		Role:     models.UserRole("ADMIN"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", PasswordHash: string(hash), FullName: "Ana", Role: models.RoleTeacher, Active: true})
	svc := newAuthServiceForTest(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", PasswordHash: string(hash), Role: models.RoleTeacher, Active: true})
	svc := newAuthServiceForTest(repo)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", PasswordHash: "hash", Role: models.RoleTeacher, Active: false})
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", Role: models.RoleTeacher, Active: true})
	repo.refreshTokens["old-token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthServiceForTest(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revoked, "rt1")
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", Role: models.RoleTeacher, Active: true})
	repo.refreshTokens["stale"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)}
	svc := newAuthServiceForTest(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshReuseRevokesAllSessions(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", Role: models.RoleTeacher, Active: true})
	revokedAt := time.Now().Add(-time.Minute)
	repo.refreshTokens["burned"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "burned", ExpiresAt: time.Now().Add(time.Hour), Revoked: true, RevokedAt: &revokedAt}
	repo.refreshTokens["live"] = &models.RefreshToken{ID: "rt2", UserID: "u1", Token: "live", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthServiceForTest(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "burned"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.revokedAllFor, "u1")
	assert.True(t, repo.refreshTokens["live"].Revoked)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthServiceForTest(repo)

	require.NoError(t, svc.Logout(context.Background(), "tok", "u1", "127.0.0.1", "test-agent"))
	assert.Contains(t, repo.revoked, "rt1")
	assert.Contains(t, repo.auditActions, models.AuditActionLogout)

	err := svc.Logout(context.Background(), "tok", "someone-else", "127.0.0.1", "test-agent")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsForgedSecret(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ana@example.com", Role: models.RoleTeacher, Active: true})

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: time.Minute,
	})
	resp, err := other.issueSession(context.Background(), repo.usersByID["u1"], "", "")
	require.NoError(t, err)

	svc := newAuthServiceForTest(repo)
	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
