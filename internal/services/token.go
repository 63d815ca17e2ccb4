package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"circle/internal/apperr"
	"circle/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	tokenIssuer     = "circle"
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// AccessClaims 访问令牌载荷，sub 为用户 ID
type AccessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID 解析 sub，非法时返回 0
func (c *AccessClaims) UserID() uint {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

type TokenService struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken 签发 HS256 访问令牌
func (s *TokenService) IssueAccessToken(u *models.User) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{audienceAccess},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseAccessToken 校验签名、过期时间、签发方和受众
func (s *TokenService) ParseAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims, audienceAccess); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(http.StatusUnauthorized, "token_expired", "登录已过期").Wrap(err)
		}
		return nil, apperr.Unauthorized("无效的访问令牌").Wrap(err)
	}
	if claims.UserID() == 0 {
		return nil, apperr.Unauthorized("无效的访问令牌")
	}
	return claims, nil
}

// Authenticate 供实时通道注册时使用
func (s *TokenService) Authenticate(token string) (uint, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID(), nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

// IssueRefreshToken 签发刷新令牌并落库（只存哈希）
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID uint, userAgent string) (string, error) {
	now := s.now()
	jti := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{audienceRefresh},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		ID:        jti,
		UserID:    userID,
		TokenHash: hashToken(token),
		UserAgent: truncate(userAgent, 255),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", err
	}
	return token, nil
}

// RotateRefreshToken 用旧令牌换新令牌。已吊销的令牌再次出现视为泄露，吊销该用户全部令牌
func (s *TokenService) RotateRefreshToken(ctx context.Context, token, userAgent string) (uint, string, error) {
	record, err := s.lookupRefresh(ctx, token)
	if err != nil {
		return 0, "", err
	}

	if record.RevokedAt != nil {
		log.Warn().Uint("user_id", record.UserID).Str("jti", record.ID).Msg("Refresh token reuse detected")
		if err := s.RevokeAll(ctx, record.UserID); err != nil {
			return 0, "", err
		}
		return 0, "", apperr.Unauthorized("登录状态已失效，请重新登录")
	}

	res := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", record.ID).
		Update("revoked_at", s.now())
	if res.Error != nil {
		return 0, "", res.Error
	}
	if res.RowsAffected == 0 {
		// 并发刷新，另一个请求已经用掉了这个令牌
		return 0, "", apperr.Unauthorized("登录状态已失效，请重新登录")
	}

	next, err := s.IssueRefreshToken(ctx, record.UserID, userAgent)
	if err != nil {
		return 0, "", err
	}
	return record.UserID, next, nil
}

// RevokeRefreshToken 退出登录。令牌无效时静默忽略
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	record, err := s.lookupRefresh(ctx, token)
	if err != nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", record.ID).
		Update("revoked_at", s.now()).Error
}

// RevokeAll 吊销用户所有刷新令牌
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now()).Error
}

// PurgeExpired 删除过期令牌，以及吊销超过一个刷新周期的令牌（保留期内仍可用于重放检测）
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", now, now.Add(-s.refreshTTL)).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *TokenService) lookupRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, apperr.Unauthorized("缺少刷新令牌")
	}
	claims := &jwt.RegisteredClaims{}
	if err := s.parse(token, claims, audienceRefresh); err != nil {
		return nil, apperr.Unauthorized("无效的刷新令牌").Wrap(err)
	}

	var record models.RefreshToken
	err := s.db.WithContext(ctx).Where("id = ?", claims.ID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorized("无效的刷新令牌")
	}
	if err != nil {
		return nil, err
	}
	if record.TokenHash != hashToken(token) {
		return nil, apperr.Unauthorized("无效的刷新令牌")
	}
	return &record, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
