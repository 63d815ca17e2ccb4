package models

import "time"

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// UserSettings 用户偏好，与 User 一对一
type UserSettings struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	NotifyLikes    bool      `gorm:"not null" json:"notify_likes"`
	NotifyComments bool      `gorm:"not null" json:"notify_comments"`
	NotifyFollows  bool      `gorm:"not null" json:"notify_follows"`
	NotifyMessages bool      `gorm:"not null" json:"notify_messages"`
	ShowActivity   bool      `gorm:"not null" json:"show_activity"` // 是否显示在线状态
	Theme          string    `gorm:"size:10;not null" json:"theme"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultSettings 新用户的默认偏好
func DefaultSettings(userID uint) *UserSettings {
	return &UserSettings{
		UserID:         userID,
		NotifyLikes:    true,
		NotifyComments: true,
		NotifyFollows:  true,
		NotifyMessages: true,
		ShowActivity:   true,
		Theme:          ThemeSystem,
	}
}

// Allows 判断该类型通知是否被用户开启
func (s *UserSettings) Allows(t NotificationType) bool {
	if s == nil {
		return true
	}
	switch t {
	case NotificationTypeLikePost, NotificationTypeLikeComment:
		return s.NotifyLikes
	case NotificationTypeComment, NotificationTypeReply:
		return s.NotifyComments
	case NotificationTypeFollow, NotificationTypeFollowRequest, NotificationTypeFollowAccept:
		return s.NotifyFollows
	case NotificationTypeMessage:
		return s.NotifyMessages
	}
	return true
}
