package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"circle/internal/models"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostService interface {
	Create(ctx context.Context, userID uint, caption string, image io.Reader) (*models.Post, error)
	Get(ctx context.Context, viewerID uint, pid string) (*models.Post, error)
	Update(ctx context.Context, userID uint, pid, caption string) (*models.Post, error)
	Delete(ctx context.Context, userID uint, isAdmin bool, pid string) error
	Feed(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Post], error)
	ListByUser(ctx context.Context, viewerID uint, username, cursor string, limit int) (utils.CursorPage[models.Post], error)
	Explore(ctx context.Context, viewerID uint, page utils.Page) (utils.OffsetPage[models.Post], error)
}

type PostHandler struct {
	posts PostService
}

func NewPostHandler(posts PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type captionRequest struct {
	Caption string `json:"caption" binding:"max=2200"`
}

// Create 支持 multipart（caption + 可选 image）或纯 JSON 文字帖
func (h *PostHandler) Create(c *gin.Context) {
	var (
		caption string
		image   io.Reader
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := formImage(c, "image")
		if err != nil {
			c.Error(err)
			return
		}
		if file != nil {
			defer file.Close()
			image = file
		}
		caption = c.PostForm("caption")
	} else {
		var req captionRequest
		if !bindJSON(c, &req) {
			return
		}
		caption = req.Caption
	}

	post, err := h.posts.Create(c.Request.Context(), currentUser(c), caption, image)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), currentUser(c), c.Param("pid"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var req captionRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.posts.Update(c.Request.Context(), currentUser(c), c.Param("pid"), req.Caption)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), currentUser(c), isAdmin(c), c.Param("pid")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) Feed(c *gin.Context) {
	page, err := h.posts.Feed(c.Request.Context(), currentUser(c), c.Query("cursor"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PostHandler) ListByUser(c *gin.Context) {
	page, err := h.posts.ListByUser(c.Request.Context(), currentUser(c), c.Param("username"), c.Query("cursor"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PostHandler) Explore(c *gin.Context) {
	page, err := h.posts.Explore(c.Request.Context(), currentUser(c), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}
