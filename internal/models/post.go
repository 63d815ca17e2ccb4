package models

import (
	"html/template"
	"time"
)

type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Pid          string    `gorm:"uniqueIndex;size:10;not null" json:"pid"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Caption      string    `gorm:"type:text" json:"caption"` // Markdown
	ImageURL     string    `json:"image_url"`
	LikeCount    int       `gorm:"not null;default:0" json:"like_count"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	Score        int       `gorm:"not null;default:0;index" json:"score"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CaptionHTML template.HTML `gorm:"-" json:"caption_html"`
	Liked       bool          `gorm:"-" json:"liked"`
	Bookmarked  bool          `gorm:"-" json:"bookmarked"`
}
