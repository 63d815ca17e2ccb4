package handlers

import (
	"context"
	"net/http"
	"testing"

	"circle/internal/models"
	"circle/internal/services"
	"circle/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLikeService struct {
	mock.Mock
}

func (m *mockLikeService) LikePost(ctx context.Context, userID uint, pid string) (services.LikeState, error) {
	args := m.Called(ctx, userID, pid)
	return args.Get(0).(services.LikeState), args.Error(1)
}

func (m *mockLikeService) UnlikePost(ctx context.Context, userID uint, pid string) (services.LikeState, error) {
	args := m.Called(ctx, userID, pid)
	return args.Get(0).(services.LikeState), args.Error(1)
}

func (m *mockLikeService) LikeComment(ctx context.Context, userID uint, cid string) (services.LikeState, error) {
	args := m.Called(ctx, userID, cid)
	return args.Get(0).(services.LikeState), args.Error(1)
}

func (m *mockLikeService) UnlikeComment(ctx context.Context, userID uint, cid string) (services.LikeState, error) {
	args := m.Called(ctx, userID, cid)
	return args.Get(0).(services.LikeState), args.Error(1)
}

func (m *mockLikeService) Likers(ctx context.Context, viewerID uint, pid string, page utils.Page) (utils.OffsetPage[models.User], error) {
	args := m.Called(ctx, viewerID, pid, page)
	return args.Get(0).(utils.OffsetPage[models.User]), args.Error(1)
}

func TestLikeRoutes(t *testing.T) {
	svc := new(mockLikeService)
	svc.On("LikePost", mock.Anything, uint(3), "p1").Return(services.LikeState{Liked: true, LikeCount: 5}, nil)
	svc.On("UnlikeComment", mock.Anything, uint(3), "c1").Return(services.LikeState{Liked: false, LikeCount: 0}, nil)

	h := NewLikeHandler(svc)
	r := newRouter(3, models.RoleUser)
	r.POST("/posts/:pid/like", h.LikePost)
	r.DELETE("/comments/:cid/like", h.UnlikeComment)

	w := doJSON(r, http.MethodPost, "/posts/p1/like", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"liked":true,"like_count":5}`, w.Body.String())

	w = doJSON(r, http.MethodDelete, "/comments/c1/like", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"liked":false,"like_count":0}`, w.Body.String())
	svc.AssertExpectations(t)
}

type mockCommentService struct {
	mock.Mock
}

func (m *mockCommentService) Create(ctx context.Context, userID uint, pid, content, parentCid string) (*models.Comment, error) {
	args := m.Called(ctx, userID, pid, content, parentCid)
	cm, _ := args.Get(0).(*models.Comment)
	return cm, args.Error(1)
}

func (m *mockCommentService) ListByPost(ctx context.Context, viewerID uint, pid, cursor string, limit int) (utils.CursorPage[models.Comment], error) {
	args := m.Called(ctx, viewerID, pid, cursor, limit)
	return args.Get(0).(utils.CursorPage[models.Comment]), args.Error(1)
}

func (m *mockCommentService) Replies(ctx context.Context, viewerID uint, cid string, page utils.Page) (utils.OffsetPage[models.Comment], error) {
	args := m.Called(ctx, viewerID, cid, page)
	return args.Get(0).(utils.OffsetPage[models.Comment]), args.Error(1)
}

func (m *mockCommentService) Update(ctx context.Context, userID uint, cid, content string) (*models.Comment, error) {
	args := m.Called(ctx, userID, cid, content)
	cm, _ := args.Get(0).(*models.Comment)
	return cm, args.Error(1)
}

func (m *mockCommentService) Delete(ctx context.Context, userID uint, isAdmin bool, cid string) error {
	return m.Called(ctx, userID, isAdmin, cid).Error(0)
}

func TestCreateReply(t *testing.T) {
	svc := new(mockCommentService)
	svc.On("Create", mock.Anything, uint(3), "p1", "nice", "c9").Return(&models.Comment{Cid: "c10", Content: "nice"}, nil)

	h := NewCommentHandler(svc)
	r := newRouter(3, models.RoleUser)
	r.POST("/posts/:pid/comments", h.Create)

	w := doJSON(r, http.MethodPost, "/posts/p1/comments", map[string]string{"content": "nice", "parent_cid": "c9"})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateCommentEmpty(t *testing.T) {
	svc := new(mockCommentService)

	h := NewCommentHandler(svc)
	r := newRouter(3, models.RoleUser)
	r.POST("/posts/:pid/comments", h.Create)

	w := doJSON(r, http.MethodPost, "/posts/p1/comments", map[string]string{"content": ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "content")
}
