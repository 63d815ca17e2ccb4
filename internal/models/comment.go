package models

import (
	"html/template"
	"time"
)

type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Cid        string    `gorm:"uniqueIndex;size:10;not null" json:"cid"`
	PostID     uint      `gorm:"not null;index" json:"post_id"`
	Post       Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ParentID   *uint     `gorm:"index" json:"parent_id"` // 顶层评论为空，回复统一挂在顶层评论下
	Parent     *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	LikeCount  int       `gorm:"not null;default:0" json:"like_count"`
	ReplyCount int       `gorm:"not null;default:0" json:"reply_count"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	ContentHTML template.HTML `gorm:"-" json:"content_html"`
	Liked       bool          `gorm:"-" json:"liked"`
}

func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
