package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeLikePost      NotificationType = "like_post"
	NotificationTypeLikeComment   NotificationType = "like_comment"
	NotificationTypeComment       NotificationType = "comment"
	NotificationTypeReply         NotificationType = "reply"
	NotificationTypeFollow        NotificationType = "follow"
	NotificationTypeFollowRequest NotificationType = "follow_request"
	NotificationTypeFollowAccept  NotificationType = "follow_accept"
	NotificationTypeMessage       NotificationType = "message"
)

// 多态引用的实体类型
const (
	EntityPost          = "post"
	EntityComment       = "comment"
	EntityUser          = "user"
	EntityFollowRequest = "follow_request"
	EntityConversation  = "conversation"
)

type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User       User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ActorID    uint             `gorm:"not null;index" json:"actor_id"` // Sender
	Actor      User             `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"actor"`
	Type       NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	EntityType string           `gorm:"type:varchar(20);not null;index:idx_notification_entity" json:"entity_type"`
	EntityID   uint             `gorm:"not null;index:idx_notification_entity" json:"entity_id"`
	Preview    string           `gorm:"size:200" json:"preview"` // 评论或消息摘要
	Link       string           `gorm:"size:100" json:"link"`    // 前端跳转路径
	IsRead     bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}
