package handlers

import (
	"errors"
	"io"
	"net/http"

	"circle/internal/apperr"

	"github.com/gin-gonic/gin"
)

// formImage 取出 multipart 中的图片。没有该字段时返回 nil, nil
func formImage(c *gin.Context, field string) (io.ReadCloser, error) {
	file, _, err := c.Request.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, apperr.BadRequest("请使用 multipart/form-data 上传")
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// requireImage 必须上传图片的接口使用
func requireImage(c *gin.Context, field string) (io.ReadCloser, bool) {
	file, err := formImage(c, field)
	if err != nil {
		c.Error(err)
		return nil, false
	}
	if file == nil {
		c.Error(apperr.BadRequest("请选择要上传的图片").WithDetails(map[string]any{field: "必填"}))
		return nil, false
	}
	return file, true
}
