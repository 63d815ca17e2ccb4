package utils

import (
	"strconv"
	"strings"
)

// StringToInt converts string to int, returns def if empty or invalid
func StringToInt(s string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

// ParseID 解析路径中的数字 ID。失败时返回 *strconv.NumError，由错误中间件转为 400
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, &strconv.NumError{Func: "ParseID", Num: s, Err: strconv.ErrRange}
	}
	return uint(id), nil
}
