package services

import (
	"context"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeState 点赞操作后的状态
type LikeState struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// PostLikedPayload post:liked 事件内容
type PostLikedPayload struct {
	PostID    uint        `json:"post_id"`
	Pid       string      `json:"pid"`
	LikeCount int         `json:"like_count"`
	User      models.User `json:"user"`
}

type LikeService struct {
	db            *gorm.DB
	ranking       *RankingService
	notifications *NotificationService
	pub           Publisher
}

func NewLikeService(db *gorm.DB, ranking *RankingService, notifications *NotificationService, pub Publisher) *LikeService {
	return &LikeService{db: db, ranking: ranking, notifications: notifications, pub: pub}
}

func (s *LikeService) LikePost(ctx context.Context, userID uint, pid string) (LikeState, error) {
	post, err := s.visiblePost(ctx, userID, pid)
	if err != nil {
		return LikeState{}, err
	}
	state, created, err := s.like(ctx, userID, models.LikeTargetPost, "posts", post.ID)
	if err != nil || !created {
		return state, err
	}

	if s.ranking != nil {
		s.ranking.ScheduleUpdate(post.ID)
	}
	if post.UserID != userID {
		var liker models.User
		if err := s.db.WithContext(ctx).Select(models.PublicColumns).First(&liker, userID).Error; err == nil {
			publish(ctx, s.pub, post.UserID, realtime.NewEvent(realtime.EventPostLiked, PostLikedPayload{
				PostID:    post.ID,
				Pid:       post.Pid,
				LikeCount: state.LikeCount,
				User:      liker,
			}))
		}
	}
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     post.UserID,
		ActorID:    userID,
		Type:       models.NotificationTypeLikePost,
		EntityType: models.EntityPost,
		EntityID:   post.ID,
		Preview:    utils.Excerpt(post.Caption, 80),
		Link:       "/p/" + post.Pid,
	})
	return state, nil
}

func (s *LikeService) UnlikePost(ctx context.Context, userID uint, pid string) (LikeState, error) {
	post, err := s.findPost(ctx, pid)
	if err != nil {
		return LikeState{}, err
	}
	state, removed, err := s.unlike(ctx, userID, models.LikeTargetPost, "posts", post.ID)
	if err != nil || !removed {
		return state, err
	}
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(post.ID)
	}
	return state, s.notifications.Retract(ctx, userID, post.UserID, models.NotificationTypeLikePost, models.EntityPost, post.ID)
}

func (s *LikeService) LikeComment(ctx context.Context, userID uint, cid string) (LikeState, error) {
	comment, err := s.visibleComment(ctx, userID, cid)
	if err != nil {
		return LikeState{}, err
	}
	state, created, err := s.like(ctx, userID, models.LikeTargetComment, "comments", comment.ID)
	if err != nil || !created {
		return state, err
	}
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     comment.UserID,
		ActorID:    userID,
		Type:       models.NotificationTypeLikeComment,
		EntityType: models.EntityComment,
		EntityID:   comment.ID,
		Preview:    utils.Excerpt(comment.Content, 80),
		Link:       "/p/" + comment.Post.Pid,
	})
	return state, nil
}

func (s *LikeService) UnlikeComment(ctx context.Context, userID uint, cid string) (LikeState, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Where("cid = ?", cid).First(&comment).Error; err != nil {
		return LikeState{}, notFound(err, "评论不存在")
	}
	state, removed, err := s.unlike(ctx, userID, models.LikeTargetComment, "comments", comment.ID)
	if err != nil || !removed {
		return state, err
	}
	return state, s.notifications.Retract(ctx, userID, comment.UserID, models.NotificationTypeLikeComment, models.EntityComment, comment.ID)
}

// Likers 点赞用户列表，最近的在前
func (s *LikeService) Likers(ctx context.Context, viewerID uint, pid string, page utils.Page) (utils.OffsetPage[models.User], error) {
	post, err := s.visiblePost(ctx, viewerID, pid)
	if err != nil {
		return utils.OffsetPage[models.User]{}, err
	}

	var users []models.User
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Select(prefixed("users", models.PublicColumns)).
		Joins("JOIN likes ON likes.user_id = users.id").
		Where("likes.target_type = ? AND likes.target_id = ?", models.LikeTargetPost, post.ID).
		Order("likes.created_at DESC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&users).Error
	if err != nil {
		return utils.OffsetPage[models.User]{}, err
	}
	return utils.NewOffsetPage(users, page), nil
}

// like 重复点赞时 created 为 false，计数不变
func (s *LikeService) like(ctx context.Context, userID uint, targetType, table string, targetID uint) (LikeState, bool, error) {
	var created bool
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{UserID: userID, TargetType: targetType, TargetID: targetID})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		if created {
			if err := tx.Table(table).Where("id = ?", targetID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
		}
		var err error
		count, err = likeCount(tx, table, targetID)
		return err
	})
	return LikeState{Liked: true, LikeCount: count}, created, err
}

func (s *LikeService) unlike(ctx context.Context, userID uint, targetType, table string, targetID uint) (LikeState, bool, error) {
	var removed bool
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
			Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if removed {
			if err := tx.Table(table).Where("id = ?", targetID).
				UpdateColumn("like_count", gorm.Expr("GREATEST(like_count - 1, 0)")).Error; err != nil {
				return err
			}
		}
		var err error
		count, err = likeCount(tx, table, targetID)
		return err
	})
	return LikeState{Liked: false, LikeCount: count}, removed, err
}

func (s *LikeService) findPost(ctx context.Context, pid string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User", publicUser).Where("pid = ?", pid).First(&post).Error; err != nil {
		return nil, notFound(err, "帖子不存在")
	}
	return &post, nil
}

func (s *LikeService) visiblePost(ctx context.Context, viewerID uint, pid string) (*models.Post, error) {
	post, err := s.findPost(ctx, pid)
	if err != nil {
		return nil, err
	}
	ok, err := canView(ctx, s.db, viewerID, &post.User)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("这是私密账号，关注后才能查看")
	}
	return post, nil
}

func (s *LikeService) visibleComment(ctx context.Context, viewerID uint, cid string) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).
		Preload("Post").Preload("Post.User", publicUser).
		Where("cid = ?", cid).First(&comment).Error
	if err != nil {
		return nil, notFound(err, "评论不存在")
	}
	ok, err := canView(ctx, s.db, viewerID, &comment.Post.User)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("这是私密账号，关注后才能查看")
	}
	return &comment, nil
}

func likeCount(tx *gorm.DB, table string, id uint) (int, error) {
	var counts []int
	if err := tx.Table(table).Where("id = ?", id).Pluck("like_count", &counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, apperr.NotFound("内容不存在")
	}
	return counts[0], nil
}

// likedTargets 返回 ids 中 userID 点过赞的集合
func likedTargets(ctx context.Context, db *gorm.DB, userID uint, targetType string, ids []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if userID == 0 || len(ids) == 0 {
		return liked, nil
	}
	var hits []uint
	err := db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, targetType, ids).
		Pluck("target_id", &hits).Error
	if err != nil {
		return nil, err
	}
	for _, id := range hits {
		liked[id] = true
	}
	return liked, nil
}

func deleteLikes(tx *gorm.DB, targetType string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("target_type = ? AND target_id IN ?", targetType, ids).Delete(&models.Like{}).Error
}
