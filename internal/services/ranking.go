package services

import (
	"context"
	"sync"
	"time"

	"circle/internal/models"
	"circle/internal/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	rankingQueueSize = 1000
	rankingBatchSize = 50
	rankingFlush     = 500 * time.Millisecond
)

// RankingService 异步计算并更新帖子 Score（发现页排序）
type RankingService struct {
	db      *gorm.DB
	queue   chan uint // 待更新的帖子 ID 队列
	pending map[uint]bool
	mu      sync.Mutex
	done    chan struct{}
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{
		db:      db,
		queue:   make(chan uint, rankingQueueSize), // 缓冲队列，防止阻塞
		pending: make(map[uint]bool),
		done:    make(chan struct{}),
	}
}

// Start 启动后台 worker，ctx 结束后处理完手头的批次再退出
func (s *RankingService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Done worker 退出后关闭
func (s *RankingService) Done() <-chan struct{} {
	return s.done
}

// ScheduleUpdate 将帖子加入更新队列（异步）
// 使用去重机制避免短时间内重复计算同一帖子
func (s *RankingService) ScheduleUpdate(postID uint) {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
	default:
		// 队列满了，移除 pending 标记
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		log.Warn().Uint("post_id", postID).Msg("Ranking queue full, skipping")
	}
}

func (s *RankingService) worker(ctx context.Context) {
	defer close(s.done)

	batch := make([]uint, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				s.processBatch(context.Background(), batch)
			}
			return
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, postIDs []uint) {
	for _, postID := range postIDs {
		if err := s.UpdatePostScore(ctx, postID); err != nil {
			log.Error().Err(err).Uint("post_id", postID).Msg("Failed to update post score")
		}

		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}
}

// UpdatePostScore 计算并更新单个帖子的 Score
func (s *RankingService) UpdatePostScore(ctx context.Context, postID uint) error {
	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "like_count", "comment_count", "created_at").First(&post, postID).Error; err != nil {
		return err
	}

	var bookmarks int64
	if err := s.db.WithContext(ctx).Model(&models.Bookmark{}).Where("post_id = ?", postID).Count(&bookmarks).Error; err != nil {
		return err
	}

	score := utils.CalculateScore(post.CreatedAt, post.LikeCount, post.CommentCount, int(bookmarks))

	return s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("score", int(score)).Error
}

// RefreshRecent 重算最近 7 天和分数最高的 30 篇帖子（定时任务）
func (s *RankingService) RefreshRecent(ctx context.Context) (int, error) {
	processed := make(map[uint]bool)

	var recent []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("created_at >= ?", time.Now().AddDate(0, 0, -7)).
		Pluck("id", &recent).Error; err != nil {
		return 0, err
	}
	var top []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Order("score DESC").Limit(30).
		Pluck("id", &top).Error; err != nil {
		return 0, err
	}

	for _, id := range append(recent, top...) {
		if processed[id] {
			continue
		}
		processed[id] = true
		if err := s.UpdatePostScore(ctx, id); err != nil {
			log.Error().Err(err).Uint("post_id", id).Msg("Failed to refresh post score")
		}
	}
	return len(processed), nil
}
