package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/services"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type LikeService interface {
	LikePost(ctx context.Context, userID uint, pid string) (services.LikeState, error)
	UnlikePost(ctx context.Context, userID uint, pid string) (services.LikeState, error)
	LikeComment(ctx context.Context, userID uint, cid string) (services.LikeState, error)
	UnlikeComment(ctx context.Context, userID uint, cid string) (services.LikeState, error)
	Likers(ctx context.Context, viewerID uint, pid string, page utils.Page) (utils.OffsetPage[models.User], error)
}

type LikeHandler struct {
	likes LikeService
}

func NewLikeHandler(likes LikeService) *LikeHandler {
	return &LikeHandler{likes: likes}
}

func (h *LikeHandler) LikePost(c *gin.Context) {
	h.respond(c, h.likes.LikePost, "pid")
}

func (h *LikeHandler) UnlikePost(c *gin.Context) {
	h.respond(c, h.likes.UnlikePost, "pid")
}

func (h *LikeHandler) LikeComment(c *gin.Context) {
	h.respond(c, h.likes.LikeComment, "cid")
}

func (h *LikeHandler) UnlikeComment(c *gin.Context) {
	h.respond(c, h.likes.UnlikeComment, "cid")
}

func (h *LikeHandler) Likers(c *gin.Context) {
	page, err := h.likes.Likers(c.Request.Context(), currentUser(c), c.Param("pid"), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *LikeHandler) respond(c *gin.Context, op func(context.Context, uint, string) (services.LikeState, error), param string) {
	state, err := op(c.Request.Context(), currentUser(c), c.Param(param))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, state)
}
