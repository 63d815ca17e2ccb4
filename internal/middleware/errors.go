package middleware

import (
	"net/http"

	"circle/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorHandler 统一把 c.Error 收集到的错误翻译成 JSON 响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperr.Translate(c.Errors.Last().Err)
		if appErr.Status >= http.StatusInternalServerError {
			log.Error().Err(appErr.Unwrap()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("Unhandled error")
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(appErr.Status, gin.H{"error": appErr})
	}
}

// Recovery panic 时返回统一的 500 响应
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": apperr.New(http.StatusInternalServerError, "internal_error", "服务器内部错误"),
		})
	})
}
