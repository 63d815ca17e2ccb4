package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 携带 HTTP 状态码的业务错误
type Error struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails 附加字段级信息
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Wrap 保留底层错误用于日志，不会返回给客户端
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "bad_request", message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "forbidden", message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, "not_found", message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, "conflict", message)
}

func TooLarge(message string) *Error {
	return New(http.StatusRequestEntityTooLarge, "file_too_large", message)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, "too_many_requests", message)
}

func Unavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, "unavailable", message)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "internal_error", "服务器内部错误").Wrap(err)
}

// StatusOf 取错误对应的状态码，非 *Error 视为 500
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
