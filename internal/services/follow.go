package services

import (
	"context"
	"errors"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowStatus string

const (
	FollowStatusFollowing FollowStatus = "following"
	FollowStatusRequested FollowStatus = "requested"
)

type FollowService struct {
	db            *gorm.DB
	notifications *NotificationService
	pub           Publisher
	onChange      func(userID uint)
}

func NewFollowService(db *gorm.DB, notifications *NotificationService, pub Publisher) *FollowService {
	return &FollowService{db: db, notifications: notifications, pub: pub}
}

// OnChange 关注关系变化时回调（用于清理推荐缓存）
func (s *FollowService) OnChange(fn func(userID uint)) {
	s.onChange = fn
}

func (s *FollowService) changed(userID uint) {
	if s.onChange != nil {
		s.onChange(userID)
	}
}

// Follow 公开账号直接关注，私密账号发送关注申请
func (s *FollowService) Follow(ctx context.Context, userID uint, username string) (FollowStatus, error) {
	target, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return "", err
	}
	if target.ID == userID {
		return "", apperr.BadRequest("不能关注自己")
	}
	following, err := isFollowing(ctx, s.db, userID, target.ID)
	if err != nil {
		return "", err
	}
	if following {
		return "", apperr.Conflict("已关注该用户")
	}

	if target.IsPrivate {
		return FollowStatusRequested, s.request(ctx, userID, target.ID)
	}

	var created bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err = createFollow(tx, userID, target.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	if !created {
		return "", apperr.Conflict("已关注该用户")
	}

	s.changed(userID)
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     target.ID,
		ActorID:    userID,
		Type:       models.NotificationTypeFollow,
		EntityType: models.EntityUser,
		EntityID:   userID,
	})
	return FollowStatusFollowing, nil
}

func (s *FollowService) request(ctx context.Context, senderID, receiverID uint) error {
	var req models.FollowRequest
	err := s.db.WithContext(ctx).Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).First(&req).Error
	switch {
	case err == nil:
		if req.Status == models.FollowRequestPending {
			return apperr.Conflict("已发送关注申请")
		}
		// 被拒绝或已通过后取关的，复用原记录重新申请
		if err := s.db.WithContext(ctx).Model(&req).Update("status", models.FollowRequestPending).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		req = models.FollowRequest{SenderID: senderID, ReceiverID: receiverID, Status: models.FollowRequestPending}
		if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
			return err
		}
	default:
		return err
	}

	var sender models.User
	if err := s.db.WithContext(ctx).Select(models.PublicColumns).First(&sender, senderID).Error; err == nil {
		req.Sender = sender
	}
	publish(ctx, s.pub, receiverID, realtime.NewEvent(realtime.EventFollowRequest, req))
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     receiverID,
		ActorID:    senderID,
		Type:       models.NotificationTypeFollowRequest,
		EntityType: models.EntityFollowRequest,
		EntityID:   req.ID,
	})
	return nil
}

// Unfollow 取消关注；尚未通过的申请则撤回
func (s *FollowService) Unfollow(ctx context.Context, userID uint, username string) error {
	target, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return err
	}

	var removed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err = deleteFollow(tx, userID, target.ID)
		return err
	})
	if err != nil {
		return err
	}
	if removed {
		s.changed(userID)
		return s.notifications.Retract(ctx, userID, target.ID, models.NotificationTypeFollow, models.EntityUser, userID)
	}

	var req models.FollowRequest
	err = s.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", userID, target.ID, models.FollowRequestPending).
		First(&req).Error
	if err != nil {
		return notFound(err, "未关注该用户")
	}
	if err := s.db.WithContext(ctx).Delete(&req).Error; err != nil {
		return err
	}
	return s.notifications.Retract(ctx, userID, target.ID, models.NotificationTypeFollowRequest, models.EntityFollowRequest, req.ID)
}

// RemoveFollower 移除粉丝
func (s *FollowService) RemoveFollower(ctx context.Context, userID uint, username string) error {
	follower, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return err
	}

	var removed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err = deleteFollow(tx, follower.ID, userID)
		return err
	})
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("该用户没有关注你")
	}
	s.changed(follower.ID)
	return nil
}

func (s *FollowService) Followers(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error) {
	return s.list(ctx, viewerID, username, page, "follower_id", "following_id")
}

func (s *FollowService) Following(ctx context.Context, viewerID uint, username string, page utils.Page) (utils.OffsetPage[models.User], error) {
	return s.list(ctx, viewerID, username, page, "following_id", "follower_id")
}

// list joinCol 是列表中用户所在的列，ownerCol 是主页用户所在的列
func (s *FollowService) list(ctx context.Context, viewerID uint, username string, page utils.Page, joinCol, ownerCol string) (utils.OffsetPage[models.User], error) {
	target, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return utils.OffsetPage[models.User]{}, err
	}
	ok, err := canView(ctx, s.db, viewerID, target)
	if err != nil {
		return utils.OffsetPage[models.User]{}, err
	}
	if !ok {
		return utils.OffsetPage[models.User]{}, apperr.Forbidden("这是私密账号")
	}

	var users []models.User
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Select(prefixed("users", models.PublicColumns)).
		Joins("JOIN follows ON follows."+joinCol+" = users.id").
		Where("follows."+ownerCol+" = ?", target.ID).
		Order("follows.created_at DESC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&users).Error
	if err != nil {
		return utils.OffsetPage[models.User]{}, err
	}
	return utils.NewOffsetPage(users, page), nil
}

// PendingRequests 收到的待处理申请
func (s *FollowService) PendingRequests(ctx context.Context, userID uint, page utils.Page) (utils.OffsetPage[models.FollowRequest], error) {
	var reqs []models.FollowRequest
	err := s.db.WithContext(ctx).
		Preload("Sender", publicUser).
		Where("receiver_id = ? AND status = ?", userID, models.FollowRequestPending).
		Order("updated_at DESC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&reqs).Error
	if err != nil {
		return utils.OffsetPage[models.FollowRequest]{}, err
	}
	return utils.NewOffsetPage(reqs, page), nil
}

// Accept 通过申请，建立关注关系
func (s *FollowService) Accept(ctx context.Context, userID, requestID uint) error {
	var req models.FollowRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pendingRequest(tx, userID, requestID, &req); err != nil {
			return err
		}
		if err := tx.Model(&req).Update("status", models.FollowRequestAccepted).Error; err != nil {
			return err
		}
		_, err := createFollow(tx, req.SenderID, req.ReceiverID)
		return err
	})
	if err != nil {
		return err
	}

	s.changed(req.SenderID)
	if err := s.notifications.Retract(ctx, req.SenderID, userID, models.NotificationTypeFollowRequest, models.EntityFollowRequest, req.ID); err != nil {
		return err
	}
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     req.SenderID,
		ActorID:    userID,
		Type:       models.NotificationTypeFollowAccept,
		EntityType: models.EntityUser,
		EntityID:   userID,
	})
	return nil
}

func (s *FollowService) Reject(ctx context.Context, userID, requestID uint) error {
	var req models.FollowRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pendingRequest(tx, userID, requestID, &req); err != nil {
			return err
		}
		return tx.Model(&req).Update("status", models.FollowRequestRejected).Error
	})
	if err != nil {
		return err
	}
	return s.notifications.Retract(ctx, req.SenderID, userID, models.NotificationTypeFollowRequest, models.EntityFollowRequest, req.ID)
}

// AcceptAll 账号改为公开时通过全部待处理申请
func (s *FollowService) AcceptAll(ctx context.Context, userID uint) (int, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.FollowRequest{}).
		Where("receiver_id = ? AND status = ?", userID, models.FollowRequestPending).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.Accept(ctx, userID, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func pendingRequest(tx *gorm.DB, receiverID, requestID uint, req *models.FollowRequest) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND receiver_id = ? AND status = ?", requestID, receiverID, models.FollowRequestPending).
		First(req).Error
	return notFound(err, "关注申请不存在")
}

// createFollow 已存在时返回 false
func createFollow(tx *gorm.DB, followerID, followingID uint) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowingID: followingID})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followingID).
		UpdateColumn("follower_count", gorm.Expr("follower_count + 1")).Error; err != nil {
		return false, err
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).
		UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error; err != nil {
		return false, err
	}
	return true, nil
}

func deleteFollow(tx *gorm.DB, followerID, followingID uint) (bool, error) {
	res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
	if res.Error != nil || res.RowsAffected == 0 {
		return false, res.Error
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followingID).
		UpdateColumn("follower_count", gorm.Expr("GREATEST(follower_count - 1, 0)")).Error; err != nil {
		return false, err
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).
		UpdateColumn("following_count", gorm.Expr("GREATEST(following_count - 1, 0)")).Error; err != nil {
		return false, err
	}
	return true, nil
}

func prefixed(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}
