package db

import (
	"context"
	"fmt"
	"time"

	"circle/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init 建立连接并迁移表结构
func Init(dsn string) (*gorm.DB, error) {
	conn, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info().Msg("Database connection established")

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Msg("Database migration completed")

	if err := backfillSettings(conn); err != nil {
		log.Warn().Err(err).Msg("Failed to backfill user settings")
	}

	return conn, nil
}

// Open 打开 gorm 连接。唯一键冲突会被翻译为 gorm.ErrDuplicatedKey
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Bookmark{},
		&models.Follow{},
		&models.FollowRequest{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.Subscription{},
		&models.RefreshToken{},
	); err != nil {
		return err
	}
	// 每个会话最多一条未读私信通知
	return conn.Exec(unreadMessageIndex).Error
}

const unreadMessageIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_unread_message
	ON notifications (user_id, actor_id, entity_type, entity_id)
	WHERE type = 'message' AND is_read = false`

// backfillSettings 为缺少偏好设置的老用户补齐默认值
func backfillSettings(conn *gorm.DB) error {
	res := conn.Exec(`INSERT INTO user_settings (user_id, notify_likes, notify_comments, notify_follows, notify_messages, show_activity, theme, updated_at)
		SELECT u.id, true, true, true, true, true, ?, NOW() FROM users u
		WHERE NOT EXISTS (SELECT 1 FROM user_settings s WHERE s.user_id = u.id)`, models.ThemeSystem)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("users", res.RowsAffected).Msg("Backfilled default settings")
	}
	return nil
}

// Ping 健康检查
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
