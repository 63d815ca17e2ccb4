package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostService struct {
	mock.Mock
}

func (m *mockPostService) Create(ctx context.Context, userID uint, caption string, image io.Reader) (*models.Post, error) {
	var data []byte
	if image != nil {
		data, _ = io.ReadAll(image)
	}
	args := m.Called(ctx, userID, caption, string(data))
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockPostService) Get(ctx context.Context, viewerID uint, pid string) (*models.Post, error) {
	args := m.Called(ctx, viewerID, pid)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockPostService) Update(ctx context.Context, userID uint, pid, caption string) (*models.Post, error) {
	args := m.Called(ctx, userID, pid, caption)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockPostService) Delete(ctx context.Context, userID uint, isAdmin bool, pid string) error {
	return m.Called(ctx, userID, isAdmin, pid).Error(0)
}

func (m *mockPostService) Feed(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Post], error) {
	args := m.Called(ctx, userID, cursor, limit)
	return args.Get(0).(utils.CursorPage[models.Post]), args.Error(1)
}

func (m *mockPostService) ListByUser(ctx context.Context, viewerID uint, username, cursor string, limit int) (utils.CursorPage[models.Post], error) {
	args := m.Called(ctx, viewerID, username, cursor, limit)
	return args.Get(0).(utils.CursorPage[models.Post]), args.Error(1)
}

func (m *mockPostService) Explore(ctx context.Context, viewerID uint, page utils.Page) (utils.OffsetPage[models.Post], error) {
	args := m.Called(ctx, viewerID, page)
	return args.Get(0).(utils.OffsetPage[models.Post]), args.Error(1)
}

func postRouter(svc PostService, userID uint, role string) http.Handler {
	h := NewPostHandler(svc)
	r := newRouter(userID, role)
	r.POST("/posts", h.Create)
	r.GET("/posts/feed", h.Feed)
	r.GET("/posts/:pid", h.Get)
	r.PUT("/posts/:pid", h.Update)
	r.DELETE("/posts/:pid", h.Delete)
	r.GET("/users/:username/posts", h.ListByUser)
	return r
}

func TestCreatePostJSON(t *testing.T) {
	svc := new(mockPostService)
	svc.On("Create", mock.Anything, uint(7), "hello", "").Return(&models.Post{Pid: "abc", Caption: "hello"}, nil)

	w := doJSON(postRouter(svc, 7, models.RoleUser), http.MethodPost, "/posts", map[string]string{"caption": "hello"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"pid":"abc"`)
	svc.AssertExpectations(t)
}

func TestCreatePostMultipart(t *testing.T) {
	svc := new(mockPostService)
	svc.On("Create", mock.Anything, uint(7), "sunset", "fake-image-bytes").Return(&models.Post{Pid: "img"}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("caption", "sunset"))
	fw, err := mw.CreateFormFile("image", "sunset.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("fake-image-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	postRouter(svc, 7, models.RoleUser).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreatePostCaptionTooLong(t *testing.T) {
	svc := new(mockPostService)
	long := make([]byte, 2201)
	for i := range long {
		long[i] = 'a'
	}

	w := doJSON(postRouter(svc, 7, models.RoleUser), http.MethodPost, "/posts", map[string]string{"caption": string(long)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "caption")
}

func TestDeletePostPassesAdminFlag(t *testing.T) {
	svc := new(mockPostService)
	svc.On("Delete", mock.Anything, uint(1), true, "abc").Return(nil)

	w := doJSON(postRouter(svc, 1, models.RoleAdmin), http.MethodDelete, "/posts/abc", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestGetPostErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperr.NotFound("帖子不存在"), http.StatusNotFound, "not_found"},
		{"private", apperr.Forbidden("该账号为私密账号"), http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockPostService)
			svc.On("Get", mock.Anything, uint(0), "abc").Return(nil, tt.err)

			w := doJSON(postRouter(svc, 0, ""), http.MethodGet, "/posts/abc", nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestFeedForwardsCursor(t *testing.T) {
	svc := new(mockPostService)
	page := utils.CursorPage[models.Post]{Items: []models.Post{{Pid: "p1"}}, NextCursor: "next"}
	svc.On("Feed", mock.Anything, uint(3), "abc", 5).Return(page, nil)

	w := doJSON(postRouter(svc, 3, models.RoleUser), http.MethodGet, "/posts/feed?cursor=abc&limit=5", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_cursor":"next"`)
	svc.AssertExpectations(t)
}
