package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type BookmarkService interface {
	Toggle(ctx context.Context, userID uint, pid string) (bool, error)
	List(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Bookmark], error)
}

type BookmarkHandler struct {
	bookmarks BookmarkService
}

func NewBookmarkHandler(bookmarks BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks}
}

// Toggle 切换收藏状态 - 收藏/取消收藏
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	bookmarked, err := h.bookmarks.Toggle(c.Request.Context(), currentUser(c), c.Param("pid"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

func (h *BookmarkHandler) List(c *gin.Context) {
	page, err := h.bookmarks.List(c.Request.Context(), currentUser(c), c.Query("cursor"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}
