package utils

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// NormalizeUsername 用户名统一小写、去掉前导 @
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// ValidUsername 3-30 位小写字母、数字、下划线或点，不能以点开头或结尾
func ValidUsername(s string) bool {
	if !usernameRe.MatchString(s) {
		return false
	}
	return !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".") && !strings.Contains(s, "..")
}

// DefaultAvatar 根据用户名生成默认头像地址
func DefaultAvatar(username string) string {
	return "https://api.dicebear.com/9.x/initials/svg?seed=" + url.QueryEscape(username)
}

var emailValidator = validator.New()

// IsEmail 与注册请求的 binding:"email" 使用同一套规则
func IsEmail(s string) bool {
	return emailValidator.Var(s, "required,email") == nil
}
