package services

import (
	"context"
	"errors"
	"strings"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"gorm.io/gorm"
)

type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewAuthService(db *gorm.DB, tokens *TokenService) *AuthService {
	return &AuthService{db: db, tokens: tokens}
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// AuthResult 登录结果，刷新令牌只写入 cookie
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"-"`
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput, userAgent string) (*AuthResult, error) {
	username := utils.NormalizeUsername(in.Username)
	if !utils.ValidUsername(username) {
		return nil, apperr.BadRequest("用户名只能包含小写字母、数字、下划线和点，长度 3-30").
			WithDetails(map[string]any{"username": "格式不正确"})
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !utils.IsEmail(email) {
		return nil, apperr.BadRequest("邮箱格式不正确").WithDetails(map[string]any{"email": "格式不正确"})
	}

	var existing models.User
	err := s.db.WithContext(ctx).Select("username", "email").
		Where("username = ? OR email = ?", username, email).
		First(&existing).Error
	if err == nil {
		field := "email"
		if existing.Username == username {
			field = "username"
		}
		return nil, apperr.Conflict("用户名或邮箱已被注册").WithDetails(map[string]any{field: "已被占用"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		FullName: strings.TrimSpace(in.FullName),
		Avatar:   utils.DefaultAvatar(username),
		Role:     models.RoleUser,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		settings := models.DefaultSettings(user.ID)
		if err := tx.Create(settings).Error; err != nil {
			return err
		}
		user.Settings = settings
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, user, userAgent)
}

// Login 支持邮箱或用户名。用户不存在和密码错误返回同样的提示
func (s *AuthService) Login(ctx context.Context, login, password, userAgent string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	q := s.db.WithContext(ctx).Preload("Settings")
	if utils.IsEmail(login) {
		q = q.Where("email = ?", strings.ToLower(login))
	} else {
		q = q.Where("username = ?", utils.NormalizeUsername(login))
	}

	var user models.User
	err := q.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorized("账号或密码错误")
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, apperr.Unauthorized("账号或密码错误")
	}

	return s.issue(ctx, &user, userAgent)
}

// Refresh 轮换刷新令牌并签发新的访问令牌
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (*AuthResult, error) {
	userID, next, err := s.tokens.RotateRefreshToken(ctx, refreshToken, userAgent)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("账号不存在")
		}
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(&user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: &user, AccessToken: access, RefreshToken: next}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// Me 当前用户，含邮箱和偏好设置
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Settings").First(&user, userID).Error; err != nil {
		return nil, notFound(err, "用户不存在")
	}
	return &user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, userAgent string) (*AuthResult, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
