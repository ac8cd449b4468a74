package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schoolweb/config"
	"schoolweb/internal/repository"
)

// SyncLogService 日历同步记录维护
type SyncLogService interface {
	// Purge 删除早于保留期的记录
	Purge(ctx context.Context) (int64, error)
	// Schedule 按 cron 表达式注册定期清理任务
	Schedule(c *cron.Cron) (cron.EntryID, error)
}

type syncLogService struct {
	cfg    *config.RetentionConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncLogService 创建 SyncLogService 实例
func NewSyncLogService(cfg *config.RetentionConfig, repo *repository.Repository, logger *zap.Logger) SyncLogService {
	return &syncLogService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

func (s *syncLogService) Purge(ctx context.Context) (int64, error) {
	if s.cfg.SyncLogDays <= 0 {
		return 0, nil
	}
	before := s.now().AddDate(0, 0, -s.cfg.SyncLogDays)

	n, err := s.repo.SyncLog.DeleteBefore(ctx, before)
	if err != nil {
		s.logger.Error("清理日历同步记录失败", zap.Error(err))
		return 0, err
	}
	s.logger.Info("清理日历同步记录完成", zap.Int64("deleted", n), zap.Time("before", before))
	return n, nil
}

func (s *syncLogService) Schedule(c *cron.Cron) (cron.EntryID, error) {
	return c.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.Purge(ctx)
	})
}
