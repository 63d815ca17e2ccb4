package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/services"

	"github.com/gin-gonic/gin"
)

type SettingsService interface {
	Get(ctx context.Context, userID uint) (*models.UserSettings, error)
	Update(ctx context.Context, userID uint, in services.SettingsInput) (*models.UserSettings, error)
	ChangePassword(ctx context.Context, userID uint, current, next string) error
	DeleteAccount(ctx context.Context, userID uint, password string) error
}

type SubscriptionService interface {
	Save(ctx context.Context, userID uint, in services.SubscriptionInput, userAgent string) (*models.Subscription, error)
	Remove(ctx context.Context, userID uint, endpoint string) error
}

type SettingsHandler struct {
	settings      SettingsService
	subscriptions SubscriptionService
}

func NewSettingsHandler(settings SettingsService, subscriptions SubscriptionService) *SettingsHandler {
	return &SettingsHandler{settings: settings, subscriptions: subscriptions}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req services.SettingsInput
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.settings.Update(c.Request.Context(), currentUser(c), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.settings.ChangePassword(c.Request.Context(), currentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAccount 需要再次输入密码
func (h *SettingsHandler) DeleteAccount(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.settings.DeleteAccount(c.Request.Context(), currentUser(c), req.Password); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SettingsHandler) Subscribe(c *gin.Context) {
	var req services.SubscriptionInput
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.subscriptions.Save(c.Request.Context(), currentUser(c), req, c.Request.UserAgent())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *SettingsHandler) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.subscriptions.Remove(c.Request.Context(), currentUser(c), req.Endpoint); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
