package middleware

import (
	"strings"

	"circle/internal/apperr"
	"circle/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey = "user_id"
	UserRoleKey  = "user_role"
	UsernameKey  = "username"
)

// TokenParser 校验访问令牌
type TokenParser interface {
	ParseAccessToken(token string) (*services.AccessClaims, error)
}

// LoadUser 解析 Authorization: Bearer，成功后把用户写入上下文。
// 没带令牌的请求直接放行；带了但无效则返回 401，方便前端触发刷新
func LoadUser(tp TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		claims, err := tp.ParseAccessToken(token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(CheckUserKey, claims.UserID())
		c.Set(UserRoleKey, claims.Role)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == 0 {
			c.Error(apperr.Unauthorized("请先登录"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID 未登录返回 0
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(CheckUserKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(UserRoleKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
