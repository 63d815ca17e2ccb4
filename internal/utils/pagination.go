package utils

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Page skip/limit 分页参数
type Page struct {
	Page  int
	Limit int
}

// NewPage 解析 ?page=&limit=，非法值回落到默认
func NewPage(page, limit string) Page {
	p := Page{Page: StringToInt(page, 1), Limit: StringToInt(limit, DefaultLimit)}
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = ClampLimit(p.Limit)
	return p
}

func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// OffsetPage skip/limit 分页结果。查询时多取一条用于判断 HasMore
type OffsetPage[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	HasMore bool `json:"has_more"`
}

// NewOffsetPage 传入按 Limit+1 查询到的结果
func NewOffsetPage[T any](items []T, p Page) OffsetPage[T] {
	hasMore := len(items) > p.Limit
	if hasMore {
		items = items[:p.Limit]
	}
	if items == nil {
		items = []T{}
	}
	return OffsetPage[T]{Items: items, Page: p.Page, HasMore: hasMore}
}

// Cursor "早于某条记录" 游标，按 (created_at, id) 倒序翻页
type Cursor struct {
	CreatedAt time.Time
	ID        uint
}

func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatUint(uint64(c.ID), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor 空字符串返回 nil，表示从头开始
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("decode cursor: missing separator")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, err
	}
	return &Cursor{CreatedAt: t, ID: uint(n)}, nil
}

// CursorPage 游标分页结果
type CursorPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NewCursorPage 传入按 limit+1 查询到的结果，key 取出每条记录的游标
func NewCursorPage[T any](items []T, limit int, key func(T) Cursor) CursorPage[T] {
	page := CursorPage[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = key(page.Items[limit-1]).Encode()
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
