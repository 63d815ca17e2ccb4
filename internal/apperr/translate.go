package apperr

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Translate 把任意错误映射为 *Error。未识别的错误落到 500，原始错误保留在 Err 中
func Translate(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = describe(fe)
		}
		return New(http.StatusBadRequest, "validation_error", "参数校验失败").WithDetails(fields).Wrap(err)
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return New(http.StatusConflict, "duplicate_key", "资源已存在").Wrap(err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("资源不存在").Wrap(err)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || errors.Is(err, multipart.ErrMessageTooLarge) {
		e := TooLarge("上传文件过大").Wrap(err)
		if maxBytes != nil {
			e.Details = map[string]any{"limit_bytes": maxBytes.Limit}
		}
		return e
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return New(http.StatusBadRequest, "invalid_value", "无效的参数值").
			WithDetails(map[string]any{"value": numErr.Num}).Wrap(err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return New(http.StatusBadRequest, "invalid_value", "JSON 格式错误").
			WithDetails(map[string]any{"offset": syntaxErr.Offset}).Wrap(err)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return New(http.StatusBadRequest, "invalid_value", "字段类型错误").
			WithDetails(map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()}).Wrap(err)
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return New(http.StatusBadRequest, "invalid_value", "时间格式错误").Wrap(err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return BadRequest("请求体为空或不完整").Wrap(err)
	}

	return Internal(err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "min":
		return "长度不能小于 " + fe.Param()
	case "max":
		return "长度不能超过 " + fe.Param()
	case "email":
		return "邮箱格式不正确"
	case "oneof":
		return "取值必须是 " + strings.ReplaceAll(fe.Param(), " ", "/")
	case "url":
		return "URL 格式不正确"
	default:
		return "不满足规则 " + fe.Tag()
	}
}
