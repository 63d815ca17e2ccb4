package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"gorm.io/gorm"
)

const maxCommentRunes = 1000

// CommentCreatedPayload comment:new 事件内容
type CommentCreatedPayload struct {
	PostID  uint            `json:"post_id"`
	Pid     string          `json:"pid"`
	Comment *models.Comment `json:"comment"`
}

type CommentService struct {
	db            *gorm.DB
	ranking       *RankingService
	notifications *NotificationService
	pub           Publisher
}

func NewCommentService(db *gorm.DB, ranking *RankingService, notifications *NotificationService, pub Publisher) *CommentService {
	return &CommentService{db: db, ranking: ranking, notifications: notifications, pub: pub}
}

// Create 发表评论。回复统一挂到顶层评论下，只保留两层
func (s *CommentService) Create(ctx context.Context, userID uint, pid, content, parentCid string) (*models.Comment, error) {
	content, err := checkContent(content)
	if err != nil {
		return nil, err
	}

	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User", publicUser).Where("pid = ?", pid).First(&post).Error; err != nil {
		return nil, notFound(err, "帖子不存在")
	}
	if err := s.checkVisible(ctx, userID, &post.User); err != nil {
		return nil, err
	}

	comment := models.Comment{
		Cid:     utils.RandString(10),
		PostID:  post.ID,
		UserID:  userID,
		Content: content,
	}
	var parent *models.Comment
	if parentCid != "" {
		parent = &models.Comment{}
		err := s.db.WithContext(ctx).Where("cid = ? AND post_id = ?", parentCid, post.ID).First(parent).Error
		if err != nil {
			return nil, notFound(err, "回复的评论不存在")
		}
		topID := parent.ID
		if parent.ParentID != nil {
			topID = *parent.ParentID
		}
		comment.ParentID = &topID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return err
		}
		if comment.ParentID != nil {
			return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(post.ID)
	}

	if err := s.db.WithContext(ctx).Select(models.PublicColumns).First(&comment.User, userID).Error; err != nil {
		return nil, err
	}
	comment.ContentHTML = utils.RenderMarkdown(comment.Content)

	s.fanOut(ctx, &post, parent, &comment)
	return &comment, nil
}

// fanOut 通知帖子作者和被回复者，同一人只通知一次
func (s *CommentService) fanOut(ctx context.Context, post *models.Post, parent *models.Comment, comment *models.Comment) {
	publish(ctx, s.pub, post.UserID, realtime.NewEvent(realtime.EventCommentNew, CommentCreatedPayload{
		PostID:  post.ID,
		Pid:     post.Pid,
		Comment: comment,
	}))

	base := models.Notification{
		ActorID:    comment.UserID,
		EntityType: models.EntityComment,
		EntityID:   comment.ID,
		Preview:    utils.Excerpt(comment.Content, 80),
		Link:       fmt.Sprintf("/p/%s#%s", post.Pid, comment.Cid),
	}
	if parent != nil && parent.UserID != comment.UserID {
		n := base
		n.UserID = parent.UserID
		n.Type = models.NotificationTypeReply
		s.notifications.Deliver(ctx, n)
	}
	if parent == nil || parent.UserID != post.UserID {
		n := base
		n.UserID = post.UserID
		n.Type = models.NotificationTypeComment
		s.notifications.Deliver(ctx, n)
	}
}

// ListByPost 顶层评论，最新的在前
func (s *CommentService) ListByPost(ctx context.Context, viewerID uint, pid, cursor string, limit int) (utils.CursorPage[models.Comment], error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User", publicUser).Where("pid = ?", pid).First(&post).Error; err != nil {
		return utils.CursorPage[models.Comment]{}, notFound(err, "帖子不存在")
	}
	if err := s.checkVisible(ctx, viewerID, &post.User); err != nil {
		return utils.CursorPage[models.Comment]{}, err
	}

	limit = utils.ClampLimit(limit)
	q := s.db.WithContext(ctx).Model(&models.Comment{}).
		Preload("User", publicUser).
		Where("comments.post_id = ? AND comments.parent_id IS NULL", post.ID)
	q, err := applyCursor(q, cursor, "comments")
	if err != nil {
		return utils.CursorPage[models.Comment]{}, err
	}

	var comments []models.Comment
	if err := q.Limit(limit + 1).Find(&comments).Error; err != nil {
		return utils.CursorPage[models.Comment]{}, err
	}
	page := utils.NewCursorPage(comments, limit, func(c models.Comment) utils.Cursor {
		return utils.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	if err := s.decorate(ctx, viewerID, page.Items); err != nil {
		return utils.CursorPage[models.Comment]{}, err
	}
	return page, nil
}

// Replies 某条顶层评论下的回复，按时间正序
func (s *CommentService) Replies(ctx context.Context, viewerID uint, cid string, page utils.Page) (utils.OffsetPage[models.Comment], error) {
	var parent models.Comment
	err := s.db.WithContext(ctx).Preload("Post").Preload("Post.User", publicUser).
		Where("cid = ?", cid).First(&parent).Error
	if err != nil {
		return utils.OffsetPage[models.Comment]{}, notFound(err, "评论不存在")
	}
	if err := s.checkVisible(ctx, viewerID, &parent.Post.User); err != nil {
		return utils.OffsetPage[models.Comment]{}, err
	}

	var replies []models.Comment
	err = s.db.WithContext(ctx).
		Preload("User", publicUser).
		Where("parent_id = ?", parent.ID).
		Order("created_at ASC").Order("id ASC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&replies).Error
	if err != nil {
		return utils.OffsetPage[models.Comment]{}, err
	}
	result := utils.NewOffsetPage(replies, page)
	if err := s.decorate(ctx, viewerID, result.Items); err != nil {
		return utils.OffsetPage[models.Comment]{}, err
	}
	return result, nil
}

func (s *CommentService) Update(ctx context.Context, userID uint, cid, content string) (*models.Comment, error) {
	content, err := checkContent(content)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("User", publicUser).Where("cid = ?", cid).First(&comment).Error; err != nil {
		return nil, notFound(err, "评论不存在")
	}
	if comment.UserID != userID {
		return nil, apperr.Forbidden("只能编辑自己的评论")
	}
	if err := s.db.WithContext(ctx).Model(&comment).Update("content", content).Error; err != nil {
		return nil, err
	}

	comments := []models.Comment{comment}
	if err := s.decorate(ctx, userID, comments); err != nil {
		return nil, err
	}
	return &comments[0], nil
}

// Delete 评论作者、帖子作者或管理员可删除，顶层评论连同回复一起删除
func (s *CommentService) Delete(ctx context.Context, userID uint, isAdmin bool, cid string) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Post").Where("cid = ?", cid).First(&comment).Error; err != nil {
		return notFound(err, "评论不存在")
	}
	if comment.UserID != userID && comment.Post.UserID != userID && !isAdmin {
		return apperr.Forbidden("无权删除该评论")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint{comment.ID}
		if !comment.IsReply() {
			var replyIDs []uint
			if err := tx.Model(&models.Comment{}).Where("parent_id = ?", comment.ID).Pluck("id", &replyIDs).Error; err != nil {
				return err
			}
			ids = append(ids, replyIDs...)
		}

		if err := deleteLikes(tx, models.LikeTargetComment, ids); err != nil {
			return err
		}
		if err := deleteForEntities(tx, models.EntityComment, ids); err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("GREATEST(comment_count - ?, 0)", len(ids))).Error; err != nil {
			return err
		}
		if comment.IsReply() {
			return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				UpdateColumn("reply_count", gorm.Expr("GREATEST(reply_count - 1, 0)")).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(comment.PostID)
	}
	return nil
}

func (s *CommentService) checkVisible(ctx context.Context, viewerID uint, owner *models.User) error {
	ok, err := canView(ctx, s.db, viewerID, owner)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("这是私密账号，关注后才能查看")
	}
	return nil
}

func (s *CommentService) decorate(ctx context.Context, viewerID uint, comments []models.Comment) error {
	ids := make([]uint, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
		comments[i].ContentHTML = utils.RenderMarkdown(comments[i].Content)
	}
	liked, err := likedTargets(ctx, s.db, viewerID, models.LikeTargetComment, ids)
	if err != nil {
		return err
	}
	for i := range comments {
		comments[i].Liked = liked[comments[i].ID]
	}
	return nil
}

func checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.BadRequest("评论内容不能为空")
	}
	if utf8.RuneCountInString(content) > maxCommentRunes {
		return "", apperr.BadRequest("评论内容过长").WithDetails(map[string]any{"content": "最多 1000 字"})
	}
	return content, nil
}
