package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ems-leave-api/internal/models"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
)

type authRepoStub struct {
	users     map[string]*models.User
	lastLogin time.Time
}

func (s *authRepoStub) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	user, ok := s.users[login]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLogin = ts
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *authRepoStub, *auditSinkStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoStub{users: map[string]*models.User{
		"jdoe": {
			ID:           "emp-1",
			Login:        "jdoe",
			PasswordHash: string(hash),
			FullName:     "J. Doe",
			Role:         models.RoleEmployee,
			DepartmentID: strPtr("dept-1"),
			Active:       true,
		},
	}}
	audit := &auditSinkStub{}
	service := NewAuthService(repo, audit, nil, AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "ems-leave-api",
	})
	return service, repo, audit
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	service, repo, audit := newAuthFixture(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{Login: "jdoe", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "emp-1", resp.User.ID)
	assert.False(t, repo.lastLogin.IsZero())
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)

	claims, err := service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.UserID)
	assert.Equal(t, models.RoleEmployee, claims.Role)
	require.NotNil(t, claims.DepartmentID)
	assert.Equal(t, "dept-1", *claims.DepartmentID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	service, _, _ := newAuthFixture(t)

	_, err := service.Login(context.Background(), models.LoginRequest{Login: "jdoe", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	service, _, _ := newAuthFixture(t)

	_, err := service.Login(context.Background(), models.LoginRequest{Login: "ghost", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	service, repo, _ := newAuthFixture(t)
	repo.users["jdoe"].Active = false

	_, err := service.Login(context.Background(), models.LoginRequest{Login: "jdoe", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	service, _, _ := newAuthFixture(t)

	_, err := service.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
