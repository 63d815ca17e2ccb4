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
)

type mockSettingsService struct {
	mock.Mock
}

func (m *mockSettingsService) Get(ctx context.Context, userID uint) (*models.UserSettings, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*models.UserSettings)
	return s, args.Error(1)
}

func (m *mockSettingsService) Update(ctx context.Context, userID uint, in services.SettingsInput) (*models.UserSettings, error) {
	args := m.Called(ctx, userID, in)
	s, _ := args.Get(0).(*models.UserSettings)
	return s, args.Error(1)
}

func (m *mockSettingsService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *mockSettingsService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}

type mockSubscriptionService struct {
	mock.Mock
}

func (m *mockSubscriptionService) Save(ctx context.Context, userID uint, in services.SubscriptionInput, userAgent string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, in, userAgent)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *mockSubscriptionService) Remove(ctx context.Context, userID uint, endpoint string) error {
	return m.Called(ctx, userID, endpoint).Error(0)
}

func settingsRouter(settings SettingsService, subs SubscriptionService) http.Handler {
	h := NewSettingsHandler(settings, subs)
	r := newRouter(4, models.RoleUser)
	r.PUT("/settings", h.Update)
	r.PUT("/settings/password", h.ChangePassword)
	r.DELETE("/settings/account", h.DeleteAccount)
	r.POST("/subscriptions", h.Subscribe)
	r.DELETE("/subscriptions", h.Unsubscribe)
	return r
}

func TestUpdateSettingsRejectsUnknownTheme(t *testing.T) {
	svc := new(mockSettingsService)

	w := doJSON(settingsRouter(svc, nil), http.MethodPut, "/settings", map[string]any{"theme": "neon"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "theme")
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSettingsPartial(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("Update", mock.Anything, uint(4), mock.MatchedBy(func(in services.SettingsInput) bool {
		return in.Theme != nil && *in.Theme == models.ThemeDark && in.NotifyLikes == nil
	})).Return(&models.UserSettings{UserID: 4, Theme: models.ThemeDark}, nil)

	w := doJSON(settingsRouter(svc, nil), http.MethodPut, "/settings", map[string]any{"theme": "dark"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("ChangePassword", mock.Anything, uint(4), "wrong", "new-password").
		Return(apperr.BadRequest("当前密码错误").WithDetails(map[string]any{"current_password": "不正确"}))

	w := doJSON(settingsRouter(svc, nil), http.MethodPut, "/settings/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "new-password",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "current_password")
}

func TestDeleteAccount(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("DeleteAccount", mock.Anything, uint(4), "secret-pass").Return(nil)

	w := doJSON(settingsRouter(svc, nil), http.MethodDelete, "/settings/account", map[string]string{"password": "secret-pass"})

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestSubscribe(t *testing.T) {
	subs := new(mockSubscriptionService)
	subs.On("Save", mock.Anything, uint(4), mock.MatchedBy(func(in services.SubscriptionInput) bool {
		return in.Endpoint == "https://push.example.com/abc" && in.Keys.Auth == "auth-key"
	}), mock.Anything).Return(&models.Subscription{Endpoint: "https://push.example.com/abc"}, nil)

	w := doJSON(settingsRouter(nil, subs), http.MethodPost, "/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/abc",
		"keys":     map[string]string{"p256dh": "p-key", "auth": "auth-key"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	subs.AssertExpectations(t)
}

func TestSubscribeInvalidEndpoint(t *testing.T) {
	subs := new(mockSubscriptionService)

	w := doJSON(settingsRouter(nil, subs), http.MethodPost, "/subscriptions", map[string]any{
		"endpoint": "not a url",
		"keys":     map[string]string{"p256dh": "p", "auth": "a"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
