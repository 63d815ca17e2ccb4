package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"gorm.io/gorm"
)

// Presence 在线状态查询，由 realtime.Hub 实现
type Presence interface {
	IsOnline(userID uint) bool
}

// Profile 主页信息，附带与当前访问者的关系
type Profile struct {
	models.User
	IsFollowing     bool `json:"is_following"`
	FollowRequested bool `json:"follow_requested"`
	FollowsYou      bool `json:"follows_you"`
	IsOnline        bool `json:"is_online"`
	CanViewPosts    bool `json:"can_view_posts"`
}

type ProfileInput struct {
	Username  *string
	FullName  *string
	Bio       *string
	IsPrivate *bool
}

type UserService struct {
	db       *gorm.DB
	follows  *FollowService
	uploader ImageUploader
	presence Presence
	cache    *utils.Cache[[]models.User]
}

func NewUserService(db *gorm.DB, follows *FollowService, uploader ImageUploader, presence Presence) *UserService {
	return &UserService{
		db:       db,
		follows:  follows,
		uploader: uploader,
		presence: presence,
		cache:    utils.NewCache[[]models.User](500),
	}
}

func (s *UserService) GetProfile(ctx context.Context, viewerID uint, username string) (*Profile, error) {
	user, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}

	p := &Profile{User: user.Public()}
	if viewerID != 0 && viewerID != user.ID {
		if p.IsFollowing, err = isFollowing(ctx, s.db, viewerID, user.ID); err != nil {
			return nil, err
		}
		if p.FollowsYou, err = isFollowing(ctx, s.db, user.ID, viewerID); err != nil {
			return nil, err
		}
		if !p.IsFollowing {
			var pending int64
			err = s.db.WithContext(ctx).Model(&models.FollowRequest{}).
				Where("sender_id = ? AND receiver_id = ? AND status = ?", viewerID, user.ID, models.FollowRequestPending).
				Count(&pending).Error
			if err != nil {
				return nil, err
			}
			p.FollowRequested = pending > 0
		}
	}
	p.CanViewPosts = !user.IsPrivate || viewerID == user.ID || p.IsFollowing

	if s.presence != nil {
		settings, err := loadSettings(ctx, s.db, user.ID)
		if err != nil {
			return nil, err
		}
		p.IsOnline = settings.ShowActivity && s.presence.IsOnline(user.ID)
	}
	return p, nil
}

// Search 用户名或昵称前缀匹配
func (s *UserService) Search(ctx context.Context, q string, limit int) ([]models.User, error) {
	q = strings.TrimSpace(strings.TrimPrefix(q, "@"))
	if q == "" {
		return []models.User{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	pattern := escapeLike(strings.ToLower(q)) + "%"

	var users []models.User
	err := s.db.WithContext(ctx).Select(models.PublicColumns).
		Where("username LIKE ? OR LOWER(full_name) LIKE ?", pattern, pattern).
		Order("follower_count DESC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// Suggestions 随机推荐未关注的用户，每个用户缓存一分钟
func (s *UserService) Suggestions(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	key := fmt.Sprintf("suggest:%d:%d", userID, limit)
	if users, ok := s.cache.Get(key); ok {
		return users, nil
	}

	var users []models.User
	err := s.db.WithContext(ctx).Select(models.PublicColumns).
		Where("id <> ?", userID).
		Where("id NOT IN (?)", s.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID)).
		Order("random()").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, users, time.Minute)
	return users, nil
}

// InvalidateSuggestions 关注关系变化后清掉缓存
func (s *UserService) InvalidateSuggestions(userID uint) {
	s.cache.DeletePrefix(fmt.Sprintf("suggest:%d:", userID))
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFound(err, "用户不存在")
	}

	updates := map[string]any{}
	if in.Username != nil {
		username := utils.NormalizeUsername(*in.Username)
		if !utils.ValidUsername(username) {
			return nil, apperr.BadRequest("用户名只能包含小写字母、数字、下划线和点，长度 3-30").
				WithDetails(map[string]any{"username": "格式不正确"})
		}
		if username != user.Username {
			updates["username"] = username
		}
	}
	if in.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Bio != nil {
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	wasPrivate := user.IsPrivate
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}

	if len(updates) > 0 {
		// 用户名冲突由唯一索引兜底，翻译为 409
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if wasPrivate && in.IsPrivate != nil && !*in.IsPrivate && s.follows != nil {
		if _, err := s.follows.AcceptAll(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Preload("Settings").First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateAvatar 裁剪为 320px 正方形后上传
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, r io.Reader) (*models.User, error) {
	res, err := s.uploader.Upload(ctx, r, AvatarImage)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFound(err, "用户不存在")
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("avatar", res.URL).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
