package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentService interface {
	Create(ctx context.Context, userID uint, pid, content, parentCid string) (*models.Comment, error)
	ListByPost(ctx context.Context, viewerID uint, pid, cursor string, limit int) (utils.CursorPage[models.Comment], error)
	Replies(ctx context.Context, viewerID uint, cid string, page utils.Page) (utils.OffsetPage[models.Comment], error)
	Update(ctx context.Context, userID uint, cid, content string) (*models.Comment, error)
	Delete(ctx context.Context, userID uint, isAdmin bool, cid string) error
}

type CommentHandler struct {
	comments CommentService
}

func NewCommentHandler(comments CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentRequest struct {
	Content   string `json:"content" binding:"required,max=1000"`
	ParentCid string `json:"parent_cid" binding:"omitempty,max=10"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), currentUser(c), c.Param("pid"), req.Content, req.ParentCid)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) List(c *gin.Context) {
	page, err := h.comments.ListByPost(c.Request.Context(), currentUser(c), c.Param("pid"), c.Query("cursor"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CommentHandler) Replies(c *gin.Context) {
	page, err := h.comments.Replies(c.Request.Context(), currentUser(c), c.Param("cid"), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required,max=1000"`
	}
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), currentUser(c), c.Param("cid"), req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), currentUser(c), isAdmin(c), c.Param("cid")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
