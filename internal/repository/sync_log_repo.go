package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"schoolweb/internal/model"
)

// SyncLogRepository 日历同步记录数据访问接口
type SyncLogRepository interface {
	Create(ctx context.Context, log *model.CalendarSyncLog) error
	ListByCourse(ctx context.Context, courseID string, limit int) ([]model.CalendarSyncLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type syncLogRepo struct {
	db *gorm.DB
}

// NewSyncLogRepo 创建 SyncLogRepository 实例
func NewSyncLogRepo(db *gorm.DB) SyncLogRepository {
	return &syncLogRepo{db: db}
}

func (r *syncLogRepo) Create(ctx context.Context, log *model.CalendarSyncLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *syncLogRepo) ListByCourse(ctx context.Context, courseID string, limit int) ([]model.CalendarSyncLog, error) {
	var logs []model.CalendarSyncLog
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *syncLogRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.CalendarSyncLog{})
	return result.RowsAffected, result.Error
}
