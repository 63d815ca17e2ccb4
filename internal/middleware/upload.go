package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodyLimit 限制请求体大小。multipart 上传使用 uploadLimit，其余使用 jsonLimit。
// 超限时读取请求体会得到 *http.MaxBytesError，由 ErrorHandler 转为 413
func BodyLimit(jsonLimit, uploadLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		limit := jsonLimit
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			// 预留 multipart 边界和表单字段
			limit = uploadLimit + 64<<10
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
