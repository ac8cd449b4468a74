package service

import (
	"go.uber.org/zap"

	"schoolweb/config"
	"schoolweb/internal/repository"
	"schoolweb/pkg/dedup"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Courses CourseService
	Teams   CourseService
	Notice  NoticeService
	Export  ExportService
	SyncLog SyncLogService
}

// NewService 创建 Service 聚合
func NewService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) *Service {
	notice := NewNoticeService(repo, dedup.NewQueue(cfg.Notice.DedupCapacity), cfg.Notice.TTL, logger.Named("notice"))
	reconciler := NewReconciler(&cfg.Calendar, repo, notice, logger)

	return &Service{
		Courses: NewCourseService(KindCourse, &cfg.Calendar, repo, reconciler, notice, logger.Named("course")),
		Teams:   NewCourseService(KindTeam, &cfg.Calendar, repo, reconciler, notice, logger.Named("course")),
		Notice:  notice,
		Export:  NewExportService(&cfg.Calendar, repo, logger.Named("export")),
		SyncLog: NewSyncLogService(&cfg.Retention, repo, logger.Named("sync_log")),
	}
}
