package services

import (
	"context"
	"time"

	"circle/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const jobTimeout = 10 * time.Minute

// JobFunc 返回处理的记录数
type JobFunc func(ctx context.Context) (int64, error)

// Scheduler 定时维护任务
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
	}
}

// Add 注册任务，schedule 为标准 5 段 cron 表达式或 @every
func (s *Scheduler) Add(schedule, name string, fn JobFunc) error {
	_, err := s.cron.AddFunc(schedule, func() { runJob(name, fn) })
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，返回的 ctx 在运行中的任务结束后完成
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func runJob(name string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := fn(ctx)
	dur := time.Since(start)
	metrics.RecordJob(name, dur, err == nil)
	if err != nil {
		log.Error().Err(err).Str("component", "cron").Str("job", name).Msg("Job failed")
		return
	}
	log.Info().Str("component", "cron").Str("job", name).Int64("affected", n).Dur("took", dur).Msg("Job finished")
}

// RegisterMaintenance 清理过期令牌、旧的已读通知，定时重算热度
func RegisterMaintenance(s *Scheduler, schedule string, retention time.Duration,
	tokens *TokenService, notifications *NotificationService, ranking *RankingService) error {
	if err := s.Add(schedule, "purge_refresh_tokens", tokens.PurgeExpired); err != nil {
		return err
	}
	if err := s.Add(schedule, "purge_notifications", func(ctx context.Context) (int64, error) {
		return notifications.PurgeRead(ctx, time.Now().Add(-retention))
	}); err != nil {
		return err
	}
	return s.Add("@every 1h", "refresh_scores", func(ctx context.Context) (int64, error) {
		n, err := ranking.RefreshRecent(ctx)
		return int64(n), err
	})
}

// cronLogger 把 cron 内部日志转到 zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Str("component", "cron").Fields(keysAndValues).Msg(msg)
}
