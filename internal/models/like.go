package models

import (
	"time"
)

const (
	LikeTargetPost    = "post"
	LikeTargetComment = "comment"
)

// Like 点赞记录，同一用户对同一目标只有一条
type Like struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_like_target" json:"user_id"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	TargetType string    `gorm:"size:10;not null;uniqueIndex:idx_like_target;index:idx_like_lookup" json:"target_type"` // post, comment
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_like_target;index:idx_like_lookup" json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}
