package handlers

import (
	"context"
	"net/http"
	"testing"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/services"
	"circle/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockFollowService struct {
	mock.Mock
}

func (m *mockFollowService) Follow(ctx context.Context, userID uint, username string) (services.FollowStatus, error) {
	args := m.Called(ctx, userID, username)
	return args.Get(0).(services.FollowStatus), args.Error(1)
}

func (m *mockFollowService) Unfollow(ctx context.Context, userID uint, username string) error {
	return m.Called(ctx, userID, username).Error(0)
}

func (m *mockFollowService) RemoveFollower(ctx context.Context, userID uint, username string) error {
	return m.Called(ctx, userID, username).Error(0)
}

func (m *mockFollowService) Followers(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error) {
	args := m.Called(ctx, viewerID, username, page)
	return args.Get(0).(utils.OffsetPage[models.User]), args.Error(1)
}

func (m *mockFollowService) Following(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error) {
	args := m.Called(ctx, viewerID, username, page)
	return args.Get(0).(utils.OffsetPage[models.User]), args.Error(1)
}

func (m *mockFollowService) PendingRequests(ctx context.Context, userID uint, page utils.Page) (utils.OffsetPage[models.FollowRequest], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(utils.OffsetPage[models.FollowRequest]), args.Error(1)
}

func (m *mockFollowService) Accept(ctx context.Context, userID, requestID uint) error {
	return m.Called(ctx, userID, requestID).Error(0)
}

func (m *mockFollowService) Reject(ctx context.Context, userID, requestID uint) error {
	return m.Called(ctx, userID, requestID).Error(0)
}

func followRouter(svc FollowService, userID uint) http.Handler {
	h := NewFollowHandler(svc)
	r := newRouter(userID, models.RoleUser)
	r.POST("/users/:username/follow", h.Follow)
	r.DELETE("/users/:username/follow", h.Unfollow)
	r.GET("/users/:username/followers", h.Followers)
	r.POST("/follow-requests/:id/accept", h.Accept)
	r.POST("/follow-requests/:id/reject", h.Reject)
	return r
}

func TestFollowReturnsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status services.FollowStatus
	}{
		{"public account", services.FollowStatusFollowing},
		{"private account", services.FollowStatusRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockFollowService)
			svc.On("Follow", mock.Anything, uint(1), "bob").Return(tt.status, nil)

			w := doJSON(followRouter(svc, 1), http.MethodPost, "/users/bob/follow", nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"`+string(tt.status)+`"}`, w.Body.String())
		})
	}
}

func TestFollowSelf(t *testing.T) {
	svc := new(mockFollowService)
	svc.On("Follow", mock.Anything, uint(1), "alice").Return(services.FollowStatus(""), apperr.BadRequest("不能关注自己"))

	w := doJSON(followRouter(svc, 1), http.MethodPost, "/users/alice/follow", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnfollow(t *testing.T) {
	svc := new(mockFollowService)
	svc.On("Unfollow", mock.Anything, uint(1), "bob").Return(nil)

	w := doJSON(followRouter(svc, 1), http.MethodDelete, "/users/bob/follow", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestFollowersUsesPageQuery(t *testing.T) {
	svc := new(mockFollowService)
	page := utils.OffsetPage[models.User]{Items: []models.User{}, Page: 2}
	svc.On("Followers", mock.Anything, uint(1), "bob", utils.Page{Page: 2, Limit: 10}).Return(page, nil)

	w := doJSON(followRouter(svc, 1), http.MethodGet, "/users/bob/followers?page=2&limit=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAcceptInvalidID(t *testing.T) {
	svc := new(mockFollowService)

	for _, id := range []string{"abc", "0"} {
		w := doJSON(followRouter(svc, 1), http.MethodPost, "/follow-requests/"+id+"/accept", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
		assert.Equal(t, "invalid_value", decodeError(t, w).Error.Code)
	}
	svc.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectForwardsID(t *testing.T) {
	svc := new(mockFollowService)
	svc.On("Reject", mock.Anything, uint(1), uint(42)).Return(nil)

	w := doJSON(followRouter(svc, 1), http.MethodPost, "/follow-requests/42/reject", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
