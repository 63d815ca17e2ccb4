package services

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"gorm.io/gorm"
)

const maxCaptionRunes = 2200

type PostService struct {
	db       *gorm.DB
	ranking  *RankingService
	uploader ImageUploader
}

func NewPostService(db *gorm.DB, ranking *RankingService, uploader ImageUploader) *PostService {
	return &PostService{db: db, ranking: ranking, uploader: uploader}
}

// Create 发帖，文字和图片至少有一项。image 为 nil 表示纯文字
func (s *PostService) Create(ctx context.Context, userID uint, caption string, image io.Reader) (*models.Post, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" && image == nil {
		return nil, apperr.BadRequest("帖子内容不能为空")
	}
	if err := checkCaption(caption); err != nil {
		return nil, err
	}

	post := models.Post{
		Pid:     utils.RandString(10),
		UserID:  userID,
		Caption: caption,
	}
	if image != nil {
		res, err := s.uploader.Upload(ctx, image, PostImage)
		if err != nil {
			return nil, err
		}
		post.ImageURL = res.URL
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	s.scheduleRank(post.ID)

	if err := s.db.WithContext(ctx).Select(models.PublicColumns).First(&post.User, userID).Error; err != nil {
		return nil, err
	}
	posts := []models.Post{post}
	if err := s.decorate(ctx, userID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Get 私密账号的帖子只有关注者可见
func (s *PostService) Get(ctx context.Context, viewerID uint, pid string) (*models.Post, error) {
	post, err := s.find(ctx, pid)
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

	posts := []models.Post{*post}
	if err := s.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Update 只能修改文字
func (s *PostService) Update(ctx context.Context, userID uint, pid, caption string) (*models.Post, error) {
	post, err := s.find(ctx, pid)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, apperr.Forbidden("只能编辑自己的帖子")
	}

	caption = strings.TrimSpace(caption)
	if caption == "" && post.ImageURL == "" {
		return nil, apperr.BadRequest("帖子内容不能为空")
	}
	if err := checkCaption(caption); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(post).Update("caption", caption).Error; err != nil {
		return nil, err
	}

	posts := []models.Post{*post}
	if err := s.decorate(ctx, userID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Delete 作者或管理员可删除。评论、收藏随外键级联，点赞和通知手动清理
func (s *PostService) Delete(ctx context.Context, userID uint, isAdmin bool, pid string) error {
	post, err := s.find(ctx, pid)
	if err != nil {
		return err
	}
	if post.UserID != userID && !isAdmin {
		return apperr.Forbidden("无权删除该帖子")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := deleteLikes(tx, models.LikeTargetComment, commentIDs); err != nil {
			return err
		}
		if err := deleteLikes(tx, models.LikeTargetPost, []uint{post.ID}); err != nil {
			return err
		}
		if err := deleteForEntities(tx, models.EntityComment, commentIDs); err != nil {
			return err
		}
		if err := deleteForEntities(tx, models.EntityPost, []uint{post.ID}); err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, post.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", post.UserID).
			UpdateColumn("post_count", gorm.Expr("GREATEST(post_count - 1, 0)")).Error
	})
}

// Feed 自己和关注的人的帖子，最新的在前
func (s *PostService) Feed(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Post], error) {
	following := s.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID)
	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("User", publicUser).
		Where("posts.user_id = ? OR posts.user_id IN (?)", userID, following)
	return s.cursorList(ctx, q, userID, cursor, limit)
}

// ListByUser 某用户的帖子
func (s *PostService) ListByUser(ctx context.Context, viewerID uint, username, cursor string, limit int) (utils.CursorPage[models.Post], error) {
	owner, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return utils.CursorPage[models.Post]{}, err
	}
	ok, err := canView(ctx, s.db, viewerID, owner)
	if err != nil {
		return utils.CursorPage[models.Post]{}, err
	}
	if !ok {
		return utils.CursorPage[models.Post]{}, apperr.Forbidden("这是私密账号，关注后才能查看")
	}

	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("User", publicUser).
		Where("posts.user_id = ?", owner.ID)
	return s.cursorList(ctx, q, viewerID, cursor, limit)
}

// Explore 公开账号的帖子按热度排序
func (s *PostService) Explore(ctx context.Context, viewerID uint, page utils.Page) (utils.OffsetPage[models.Post], error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("User", publicUser).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("users.is_private = ?", false).
		Order("posts.score DESC").Order("posts.id DESC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&posts).Error
	if err != nil {
		return utils.OffsetPage[models.Post]{}, err
	}
	result := utils.NewOffsetPage(posts, page)
	if err := s.decorate(ctx, viewerID, result.Items); err != nil {
		return utils.OffsetPage[models.Post]{}, err
	}
	return result, nil
}

func (s *PostService) cursorList(ctx context.Context, q *gorm.DB, viewerID uint, cursor string, limit int) (utils.CursorPage[models.Post], error) {
	limit = utils.ClampLimit(limit)
	q, err := applyCursor(q, cursor, "posts")
	if err != nil {
		return utils.CursorPage[models.Post]{}, err
	}

	var posts []models.Post
	if err := q.Limit(limit + 1).Find(&posts).Error; err != nil {
		return utils.CursorPage[models.Post]{}, err
	}
	page := utils.NewCursorPage(posts, limit, func(p models.Post) utils.Cursor {
		return utils.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	if err := s.decorate(ctx, viewerID, page.Items); err != nil {
		return utils.CursorPage[models.Post]{}, err
	}
	return page, nil
}

func (s *PostService) find(ctx context.Context, pid string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("User", publicUser).Where("pid = ?", pid).First(&post).Error
	if err != nil {
		return nil, notFound(err, "帖子不存在")
	}
	return &post, nil
}

func (s *PostService) scheduleRank(postID uint) {
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(postID)
	}
}

// decorate 渲染正文并填充当前用户的点赞、收藏状态
func (s *PostService) decorate(ctx context.Context, viewerID uint, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		if posts[i].Caption != "" {
			posts[i].CaptionHTML = utils.RenderMarkdown(posts[i].Caption)
		}
	}
	if viewerID == 0 {
		return nil
	}

	liked, err := likedTargets(ctx, s.db, viewerID, models.LikeTargetPost, ids)
	if err != nil {
		return err
	}
	var bookmarked []uint
	if err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &bookmarked).Error; err != nil {
		return err
	}
	marks := make(map[uint]bool, len(bookmarked))
	for _, id := range bookmarked {
		marks[id] = true
	}
	for i := range posts {
		posts[i].Liked = liked[posts[i].ID]
		posts[i].Bookmarked = marks[posts[i].ID]
	}
	return nil
}

func checkCaption(caption string) error {
	if utf8.RuneCountInString(caption) > maxCaptionRunes {
		return apperr.BadRequest("帖子内容过长").WithDetails(map[string]any{"caption": "最多 2200 字"})
	}
	return nil
}
