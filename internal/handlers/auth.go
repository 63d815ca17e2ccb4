package handlers

import (
	"context"
	"net/http"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	RefreshCookieName = "circle_refresh"
	RefreshCookiePath = "/api/v1/auth"
	refreshSessionKey = "refresh_token"
)

type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput, userAgent string) (*services.AuthResult, error)
	Login(ctx context.Context, login, password, userAgent string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, userAgent string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID uint) (*models.User, error)
}

type AuthHandler struct {
	auth   AuthService
	cookie sessions.Options
}

// NewAuthHandler cookie 与 session store 的配置一致，清除时沿用
func NewAuthHandler(auth AuthService, cookie sessions.Options) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type signupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"max=60"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, c.Request.UserAgent())
	if err != nil {
		c.Error(err)
		return
	}
	if !h.setRefresh(c, res.RefreshToken) {
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Login, req.Password, c.Request.UserAgent())
	if err != nil {
		c.Error(err)
		return
	}
	if !h.setRefresh(c, res.RefreshToken) {
		return
	}
	c.JSON(http.StatusOK, res)
}

// Refresh 只认 HttpOnly cookie 中的刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	session := sessions.Default(c)
	token, _ := session.Get(refreshSessionKey).(string)
	if token == "" {
		c.Error(apperr.Unauthorized("登录已过期，请重新登录"))
		return
	}

	res, err := h.auth.Refresh(c.Request.Context(), token, c.Request.UserAgent())
	if err != nil {
		h.clearRefresh(c)
		c.Error(err)
		return
	}
	if !h.setRefresh(c, res.RefreshToken) {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	token, _ := session.Get(refreshSessionKey).(string)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		c.Error(err)
		return
	}
	h.clearRefresh(c)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), currentUser(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setRefresh(c *gin.Context, token string) bool {
	session := sessions.Default(c)
	session.Set(refreshSessionKey, token)
	if err := session.Save(); err != nil {
		c.Error(err)
		return false
	}
	return true
}

// clearRefresh 让浏览器删除刷新 cookie
func (h *AuthHandler) clearRefresh(c *gin.Context) {
	opts := h.cookie
	opts.MaxAge = -1
	session := sessions.Default(c)
	session.Clear()
	session.Options(opts)
	_ = session.Save()
}
