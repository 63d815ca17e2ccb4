package services

import (
	"context"
	"errors"
	"fmt"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Publisher 实时事件出口，由 realtime.LocalBroker / RedisBroker 实现
type Publisher interface {
	Publish(ctx context.Context, userID uint, ev realtime.Event) error
}

// publish 推送失败只记日志，不影响主流程
func publish(ctx context.Context, pub Publisher, userID uint, ev realtime.Event) {
	if pub == nil || userID == 0 {
		return
	}
	if err := pub.Publish(ctx, userID, ev); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Str("type", ev.Type).Msg("Failed to publish realtime event")
	}
}

// publicUser 预加载关联用户时只取公开字段
func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select(models.PublicColumns)
}

// notFound 把 gorm.ErrRecordNotFound 换成带提示的 404
func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

// applyCursor 按 (created_at, id) 倒序，从游标之后继续取
func applyCursor(q *gorm.DB, raw, table string) (*gorm.DB, error) {
	cur, err := utils.DecodeCursor(raw)
	if err != nil {
		return nil, apperr.BadRequest("无效的分页游标").Wrap(err)
	}
	if cur != nil {
		q = q.Where(fmt.Sprintf("(%[1]s.created_at < ? OR (%[1]s.created_at = ? AND %[1]s.id < ?))", table),
			cur.CreatedAt, cur.CreatedAt, cur.ID)
	}
	return q.Order(table + ".created_at DESC").Order(table + ".id DESC"), nil
}

func findUserByUsername(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("username = ?", utils.NormalizeUsername(username)).First(&user).Error
	if err != nil {
		return nil, notFound(err, "用户不存在")
	}
	return &user, nil
}

func isFollowing(ctx context.Context, db *gorm.DB, followerID, followingID uint) (bool, error) {
	if followerID == 0 {
		return false, nil
	}
	var count int64
	err := db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// canView 私密账号的内容只有本人和关注者可见
func canView(ctx context.Context, db *gorm.DB, viewerID uint, owner *models.User) (bool, error) {
	if !owner.IsPrivate || viewerID == owner.ID {
		return true, nil
	}
	return isFollowing(ctx, db, viewerID, owner.ID)
}

// loadSettings 找不到时返回默认设置
func loadSettings(ctx context.Context, db *gorm.DB, userID uint) (*models.UserSettings, error) {
	var s models.UserSettings
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
