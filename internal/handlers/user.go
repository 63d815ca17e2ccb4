package handlers

import (
	"context"
	"io"
	"net/http"

	"circle/internal/models"
	"circle/internal/services"

	"github.com/gin-gonic/gin"
)

type UserService interface {
	GetProfile(ctx context.Context, viewerID uint, username string) (*services.Profile, error)
	Search(ctx context.Context, q string, limit int) ([]models.User, error)
	Suggestions(ctx context.Context, userID uint, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID uint, in services.ProfileInput) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID uint, r io.Reader) (*models.User, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

type profileRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=30"`
	FullName  *string `json:"full_name" binding:"omitempty,max=60"`
	Bio       *string `json:"bio" binding:"omitempty,max=160"`
	IsPrivate *bool   `json:"is_private"`
}

// Profile 用户主页，登录可选
func (h *UserHandler) Profile(c *gin.Context) {
	p, err := h.users.GetProfile(c.Request.Context(), currentUser(c), c.Param("username"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), c.Query("q"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *UserHandler) Suggestions(c *gin.Context) {
	users, err := h.users.Suggestions(c.Request.Context(), currentUser(c), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), services.ProfileInput{
		Username:  req.Username,
		FullName:  req.FullName,
		Bio:       req.Bio,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateAvatar multipart 字段 image
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	file, ok := requireImage(c, "image")
	if !ok {
		return
	}
	defer file.Close()

	user, err := h.users.UpdateAvatar(c.Request.Context(), currentUser(c), file)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
