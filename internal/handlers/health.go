package handlers

import (
	"context"
	"net/http"
	"time"

	"circle/internal/apperr"

	"github.com/gin-gonic/gin"
)

// Pinger 健康检查依赖，通常是数据库连接
type Pinger func(ctx context.Context) error

func Health(ping Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			c.Error(apperr.Unavailable("数据库不可用").Wrap(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
