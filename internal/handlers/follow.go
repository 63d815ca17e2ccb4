package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/services"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type FollowService interface {
	Follow(ctx context.Context, userID uint, username string) (services.FollowStatus, error)
	Unfollow(ctx context.Context, userID uint, username string) error
	RemoveFollower(ctx context.Context, userID uint, username string) error
	Followers(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error)
	Following(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error)
	PendingRequests(ctx context.Context, userID uint, page utils.Page) (utils.OffsetPage[models.FollowRequest], error)
	Accept(ctx context.Context, userID, requestID uint) error
	Reject(ctx context.Context, userID, requestID uint) error
}

type FollowHandler struct {
	follows FollowService
}

func NewFollowHandler(follows FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

func (h *FollowHandler) Follow(c *gin.Context) {
	status, err := h.follows.Follow(c.Request.Context(), currentUser(c), c.Param("username"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// Unfollow 取消关注或撤回申请
func (h *FollowHandler) Unfollow(c *gin.Context) {
	if err := h.follows.Unfollow(c.Request.Context(), currentUser(c), c.Param("username")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FollowHandler) RemoveFollower(c *gin.Context) {
	if err := h.follows.RemoveFollower(c.Request.Context(), currentUser(c), c.Param("username")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FollowHandler) Followers(c *gin.Context) {
	page, err := h.follows.Followers(c.Request.Context(), currentUser(c), c.Param("username"), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *FollowHandler) Following(c *gin.Context) {
	page, err := h.follows.Following(c.Request.Context(), currentUser(c), c.Param("username"), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *FollowHandler) Requests(c *gin.Context) {
	page, err := h.follows.PendingRequests(c.Request.Context(), currentUser(c), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *FollowHandler) Accept(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.follows.Accept(c.Request.Context(), currentUser(c), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FollowHandler) Reject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.follows.Reject(c.Request.Context(), currentUser(c), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
