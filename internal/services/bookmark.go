package services

import (
	"context"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/utils"

	"gorm.io/gorm"
)

type BookmarkService struct {
	db      *gorm.DB
	posts   *PostService
	ranking *RankingService
}

func NewBookmarkService(db *gorm.DB, posts *PostService, ranking *RankingService) *BookmarkService {
	return &BookmarkService{db: db, posts: posts, ranking: ranking}
}

// Toggle 切换收藏状态，返回切换后是否已收藏
func (s *BookmarkService) Toggle(ctx context.Context, userID uint, pid string) (bool, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User", publicUser).Where("pid = ?", pid).First(&post).Error; err != nil {
		return false, notFound(err, "帖子不存在")
	}
	ok, err := canView(ctx, s.db, userID, &post.User)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperr.Forbidden("这是私密账号，关注后才能查看")
	}

	var bookmarked bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, post.ID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		bookmarked = true
		return tx.Create(&models.Bookmark{UserID: userID, PostID: post.ID}).Error
	})
	if err != nil {
		return false, err
	}
	if s.ranking != nil {
		s.ranking.ScheduleUpdate(post.ID)
	}
	return bookmarked, nil
}

// List 我的收藏，按收藏时间倒序
func (s *BookmarkService) List(ctx context.Context, userID uint, cursor string, limit int) (utils.CursorPage[models.Bookmark], error) {
	limit = utils.ClampLimit(limit)
	q := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Preload("Post").Preload("Post.User", publicUser).
		Where("bookmarks.user_id = ?", userID)
	q, err := applyCursor(q, cursor, "bookmarks")
	if err != nil {
		return utils.CursorPage[models.Bookmark]{}, err
	}

	var items []models.Bookmark
	if err := q.Limit(limit + 1).Find(&items).Error; err != nil {
		return utils.CursorPage[models.Bookmark]{}, err
	}
	page := utils.NewCursorPage(items, limit, func(b models.Bookmark) utils.Cursor {
		return utils.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
	})

	posts := make([]models.Post, len(page.Items))
	for i := range page.Items {
		posts[i] = page.Items[i].Post
	}
	if err := s.posts.decorate(ctx, userID, posts); err != nil {
		return utils.CursorPage[models.Bookmark]{}, err
	}
	for i := range page.Items {
		page.Items[i].Post = posts[i]
	}
	return page, nil
}
