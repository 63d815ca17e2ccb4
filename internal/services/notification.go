package services

import (
	"context"
	"time"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationService struct {
	db  *gorm.DB
	pub Publisher
}

func NewNotificationService(db *gorm.DB, pub Publisher) *NotificationService {
	return &NotificationService{db: db, pub: pub}
}

// Notify 创建通知并推送给接收者。自己触发的、或接收者关闭了该类通知时不创建。
// 同一会话已有未读私信通知时插入被唯一索引忽略，不再推送
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n.UserID == 0 || n.UserID == n.ActorID {
		return nil
	}

	settings, err := loadSettings(ctx, s.db, n.UserID)
	if err != nil {
		return err
	}
	if !settings.Allows(n.Type) {
		return nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	var actor models.User
	if err := s.db.WithContext(ctx).Select(models.PublicColumns).First(&actor, n.ActorID).Error; err == nil {
		n.Actor = actor
	}
	publish(ctx, s.pub, n.UserID, realtime.NewEvent(realtime.EventNotification, n))
	return nil
}

// Deliver 在当前请求内写入通知，失败只记日志，不影响触发它的操作。
// 客户端断开不会中止写入。s 为 nil 时不发送
func (s *NotificationService) Deliver(ctx context.Context, n models.Notification) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Notify(ctx, &n); err != nil {
		log.Error().Err(err).Str("type", string(n.Type)).Uint("user_id", n.UserID).Msg("Failed to create notification")
	}
}

// Retract 撤回通知（取消点赞、取消关注时）
func (s *NotificationService) Retract(ctx context.Context, actorID, userID uint, t models.NotificationType, entityType string, entityID uint) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("actor_id = ? AND user_id = ? AND type = ? AND entity_type = ? AND entity_id = ?", actorID, userID, t, entityType, entityID).
		Delete(&models.Notification{}).Error
}

// List 最新的在前
func (s *NotificationService) List(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Notification], error) {
	limit = utils.ClampLimit(limit)
	q := s.db.WithContext(ctx).Model(&models.Notification{}).
		Preload("Actor", publicUser).
		Where("notifications.user_id = ?", userID)
	q, err := applyCursor(q, cursor, "notifications")
	if err != nil {
		return utils.CursorPage[models.Notification]{}, err
	}

	var items []models.Notification
	if err := q.Limit(limit + 1).Find(&items).Error; err != nil {
		return utils.CursorPage[models.Notification]{}, err
	}
	return utils.NewCursorPage(items, limit, func(n models.Notification) utils.Cursor {
		return utils.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("通知不存在")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("通知不存在")
	}
	return nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// PurgeRead 清理早于 before 的已读通知
func (s *NotificationService) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, before).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// deleteForEntities 删除指向某些实体的通知（删帖、删评论时）
func deleteForEntities(tx *gorm.DB, entityType string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("entity_type = ? AND entity_id IN ?", entityType, ids).Delete(&models.Notification{}).Error
}
