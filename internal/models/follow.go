package models

import (
	"time"
)

// Follow 关注关系，Follower 关注 Following
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;index;uniqueIndex:idx_follow_pair" json:"follower_id"`
	Follower    User      `gorm:"foreignKey:FollowerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"follower"`
	FollowingID uint      `gorm:"not null;index;uniqueIndex:idx_follow_pair" json:"following_id"`
	Following   User      `gorm:"foreignKey:FollowingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "pending"
	FollowRequestAccepted FollowRequestStatus = "accepted"
	FollowRequestRejected FollowRequestStatus = "rejected"
)

// FollowRequest 私密账号的关注申请。每对用户只保留一行，重新申请时复用
type FollowRequest struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	SenderID   uint                `gorm:"not null;uniqueIndex:idx_request_pair" json:"sender_id"`
	Sender     User                `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sender"`
	ReceiverID uint                `gorm:"not null;index;uniqueIndex:idx_request_pair" json:"receiver_id"`
	Receiver   User                `gorm:"foreignKey:ReceiverID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status     FollowRequestStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}
