package services

import (
	"context"

	"circle/internal/apperr"
	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionInput 浏览器 PushSubscription.toJSON() 的结构
type SubscriptionInput struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Save 同一 endpoint 只保存一份，换账号登录时归属新用户
func (s *SubscriptionService) Save(ctx context.Context, userID uint, in SubscriptionInput, userAgent string) (*models.Subscription, error) {
	sub := models.Subscription{
		UserID:    userID,
		Endpoint:  in.Endpoint,
		P256dh:    in.Keys.P256dh,
		Auth:      in.Keys.Auth,
		UserAgent: truncate(userAgent, 255),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionService) Remove(ctx context.Context, userID uint, endpoint string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND endpoint = ?", userID, endpoint).Delete(&models.Subscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("订阅不存在")
	}
	return nil
}
