package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Username       string        `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email          string        `gorm:"uniqueIndex;not null" json:"email,omitempty"` // 仅本人可见
	Password       string        `gorm:"not null" json:"-"`                           // Hash
	FullName       string        `gorm:"size:60" json:"full_name"`
	Bio            string        `gorm:"size:160" json:"bio"`
	Avatar         string        `json:"avatar"`
	IsPrivate      bool          `gorm:"not null;default:false" json:"is_private"`
	Role           string        `gorm:"size:20;default:'user';not null" json:"role"` // user, admin
	FollowerCount  int           `gorm:"not null;default:0" json:"follower_count"`
	FollowingCount int           `gorm:"not null;default:0" json:"following_count"`
	PostCount      int           `gorm:"not null;default:0" json:"post_count"`
	Settings       *UserSettings `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"settings,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// PublicColumns 对外展示时查询的列，不含邮箱和密码
var PublicColumns = []string{
	"id", "username", "full_name", "bio", "avatar", "is_private", "role",
	"follower_count", "following_count", "post_count", "created_at", "updated_at",
}

// Public 去掉仅本人可见的字段
func (u User) Public() User {
	u.Email = ""
	u.Settings = nil
	return u
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
