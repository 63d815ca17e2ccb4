package handlers

import (
	"context"
	"net/http"
	"testing"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, in services.SignupInput, userAgent string) (*services.AuthResult, error) {
	args := m.Called(ctx, in, userAgent)
	res, _ := args.Get(0).(*services.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, login, password, userAgent string) (*services.AuthResult, error) {
	args := m.Called(ctx, login, password, userAgent)
	res, _ := args.Get(0).(*services.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (*services.AuthResult, error) {
	args := m.Called(ctx, refreshToken, userAgent)
	res, _ := args.Get(0).(*services.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func authRouter(svc AuthService) http.Handler {
	h := NewAuthHandler(svc, testCookie)
	r := newRouter(0, "")
	r.POST("/api/v1/auth/signup", h.Signup)
	r.POST("/api/v1/auth/login", h.Login)
	r.POST("/api/v1/auth/refresh", h.Refresh)
	r.POST("/api/v1/auth/logout", h.Logout)
	return r
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == RefreshCookieName {
			return ck
		}
	}
	t.Fatalf("cookie %s not set", RefreshCookieName)
	return nil
}

func TestSignupValidation(t *testing.T) {
	svc := new(mockAuthService)
	r := authRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Contains(t, body.Error.Details, "username")
	assert.Contains(t, body.Error.Details, "email")
	assert.Contains(t, body.Error.Details, "password")
	svc.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupConflict(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Signup", mock.Anything, services.SignupInput{
		Username: "alice", Email: "alice@example.com", Password: "password1",
	}, mock.Anything).Return(nil, apperr.Conflict("用户名或邮箱已被注册"))

	w := doJSON(authRouter(svc), http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password1",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, w.Result().Cookies())
	svc.AssertExpectations(t)
}

func TestLoginAndRefresh(t *testing.T) {
	svc := new(mockAuthService)
	user := &models.User{Username: "alice"}
	user.ID = 1
	svc.On("Login", mock.Anything, "alice", "password1", mock.Anything).
		Return(&services.AuthResult{User: user, AccessToken: "access-1", RefreshToken: "refresh-1"}, nil)
	svc.On("Refresh", mock.Anything, "refresh-1", mock.Anything).
		Return(&services.AuthResult{User: user, AccessToken: "access-2", RefreshToken: "refresh-2"}, nil)
	r := authRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": "alice", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access-1"`)
	assert.NotContains(t, w.Body.String(), "refresh-1")

	ck := refreshCookie(t, w.Result())
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, RefreshCookiePath, ck.Path)

	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access-2"`)
	svc.AssertExpectations(t)
}

func TestRefreshWithoutCookie(t *testing.T) {
	svc := new(mockAuthService)

	w := doJSON(authRouter(svc), http.MethodPost, "/api/v1/auth/refresh", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Error.Code)
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshFailureClearsCookie(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Login", mock.Anything, "alice", "password1", mock.Anything).
		Return(&services.AuthResult{User: &models.User{}, RefreshToken: "refresh-1"}, nil)
	svc.On("Refresh", mock.Anything, "refresh-1", mock.Anything).
		Return(nil, apperr.Unauthorized("刷新令牌已失效"))
	r := authRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": "alice", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", nil, refreshCookie(t, w.Result()))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Less(t, refreshCookie(t, w.Result()).MaxAge, 0)
}

func TestLogout(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Logout", mock.Anything, "").Return(nil)

	w := doJSON(authRouter(svc), http.MethodPost, "/api/v1/auth/logout", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
