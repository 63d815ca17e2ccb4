package services

import (
	"context"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"gorm.io/gorm"
)

const minPasswordLen = 8

// SettingsInput 只更新非空字段
type SettingsInput struct {
	NotifyLikes    *bool   `json:"notify_likes"`
	NotifyComments *bool   `json:"notify_comments"`
	NotifyFollows  *bool   `json:"notify_follows"`
	NotifyMessages *bool   `json:"notify_messages"`
	ShowActivity   *bool   `json:"show_activity"`
	Theme          *string `json:"theme" binding:"omitempty,oneof=light dark system"`
}

type SettingsService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewSettingsService(db *gorm.DB, tokens *TokenService) *SettingsService {
	return &SettingsService{db: db, tokens: tokens}
}

func (s *SettingsService) Get(ctx context.Context, userID uint) (*models.UserSettings, error) {
	return loadSettings(ctx, s.db, userID)
}

func (s *SettingsService) Update(ctx context.Context, userID uint, in SettingsInput) (*models.UserSettings, error) {
	settings, err := loadSettings(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	if in.NotifyLikes != nil {
		settings.NotifyLikes = *in.NotifyLikes
	}
	if in.NotifyComments != nil {
		settings.NotifyComments = *in.NotifyComments
	}
	if in.NotifyFollows != nil {
		settings.NotifyFollows = *in.NotifyFollows
	}
	if in.NotifyMessages != nil {
		settings.NotifyMessages = *in.NotifyMessages
	}
	if in.ShowActivity != nil {
		settings.ShowActivity = *in.ShowActivity
	}
	if in.Theme != nil {
		switch *in.Theme {
		case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
			settings.Theme = *in.Theme
		default:
			return nil, apperr.BadRequest("不支持的主题").WithDetails(map[string]any{"theme": "只能是 light、dark 或 system"})
		}
	}

	// 老用户可能还没有设置记录，Save 在 ID 为 0 时插入
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// ChangePassword 修改后吊销所有刷新令牌，其他设备需重新登录
func (s *SettingsService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if len(next) < minPasswordLen {
		return apperr.BadRequest("新密码至少 8 位").WithDetails(map[string]any{"new_password": "长度不足"})
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return notFound(err, "用户不存在")
	}
	if !utils.CheckPasswordHash(current, user.Password) {
		return apperr.BadRequest("当前密码不正确").WithDetails(map[string]any{"current_password": "不正确"})
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, userID)
}

// DeleteAccount 注销账号。关联数据大多随外键级联删除，
// 这里先修正其他用户和内容上的计数，再清理多态引用的点赞和通知
func (s *SettingsService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return notFound(err, "用户不存在")
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return apperr.BadRequest("密码不正确").WithDetails(map[string]any{"password": "不正确"})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			sql  string
			args []any
		}{
			{`UPDATE users SET follower_count = GREATEST(follower_count - 1, 0)
				WHERE id IN (SELECT following_id FROM follows WHERE follower_id = ?)`, []any{userID}},
			{`UPDATE users SET following_count = GREATEST(following_count - 1, 0)
				WHERE id IN (SELECT follower_id FROM follows WHERE following_id = ?)`, []any{userID}},
			{`UPDATE posts SET like_count = GREATEST(like_count - 1, 0)
				WHERE id IN (SELECT target_id FROM likes WHERE user_id = ? AND target_type = ?)`, []any{userID, models.LikeTargetPost}},
			{`UPDATE comments SET like_count = GREATEST(like_count - 1, 0)
				WHERE id IN (SELECT target_id FROM likes WHERE user_id = ? AND target_type = ?)`, []any{userID, models.LikeTargetComment}},
		}
		for _, step := range steps {
			if err := tx.Exec(step.sql, step.args...).Error; err != nil {
				return err
			}
		}

		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		// 自己的评论，以及挂在自己顶层评论下的回复
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).
			Where("user_id = ? OR parent_id IN (?)", userID, tx.Model(&models.Comment{}).Select("id").Where("user_id = ?", userID)).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}

		if len(commentIDs) > 0 {
			if err := tx.Exec(`UPDATE posts SET comment_count = GREATEST(posts.comment_count - c.n, 0)
				FROM (SELECT post_id, count(*) AS n FROM comments WHERE id IN ? GROUP BY post_id) AS c
				WHERE posts.id = c.post_id`, commentIDs).Error; err != nil {
				return err
			}
			if err := tx.Exec(`UPDATE comments SET reply_count = GREATEST(comments.reply_count - c.n, 0)
				FROM (SELECT parent_id, count(*) AS n FROM comments WHERE id IN ? AND parent_id IS NOT NULL GROUP BY parent_id) AS c
				WHERE comments.id = c.parent_id`, commentIDs).Error; err != nil {
				return err
			}
		}

		if err := deleteLikes(tx, models.LikeTargetPost, postIDs); err != nil {
			return err
		}
		if err := deleteLikes(tx, models.LikeTargetComment, commentIDs); err != nil {
			return err
		}
		if err := deleteForEntities(tx, models.EntityPost, postIDs); err != nil {
			return err
		}
		if err := deleteForEntities(tx, models.EntityComment, commentIDs); err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}
