package models

import (
	"time"
)

// Conversation 一对一会话，UserAID 恒小于 UserBID
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserAID       uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"-"`
	UserA         User       `gorm:"foreignKey:UserAID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserBID       uint       `gorm:"not null;index;uniqueIndex:idx_conversation_pair" json:"-"`
	UserB         User       `gorm:"foreignKey:UserBID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LastMessage   string     `gorm:"size:200" json:"last_message"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Peer        *User `gorm:"-" json:"peer,omitempty"`
	UnreadCount int64 `gorm:"-" json:"unread_count"`
}

// OrderedPair 归一化会话双方
func OrderedPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// PeerID 返回对方用户 ID
func (c *Conversation) PeerID(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

type Message struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ConversationID uint         `gorm:"not null;index:idx_message_conversation" json:"conversation_id"`
	Conversation   Conversation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SenderID       uint         `gorm:"not null;index" json:"sender_id"`
	Sender         User         `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content        string       `gorm:"type:text;not null" json:"content"`
	ReadAt         *time.Time   `json:"read_at"`
	CreatedAt      time.Time    `gorm:"index:idx_message_conversation" json:"created_at"`
}
