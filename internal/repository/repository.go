package repository

import (
	"gorm.io/gorm"

	"schoolweb/pkg/apiclient"
	"schoolweb/pkg/redis"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Course   CourseRepository
	Calendar CalendarRepository
	SyncLog  SyncLogRepository
	Notice   NoticeRepository
}

// Options 外部依赖
// Redis 为 nil 时提示消息降级为进程内存储
type Options struct {
	API      *apiclient.Client
	Calendar *apiclient.Client
	DB       *gorm.DB
	Redis    *redis.Client
}

// NewRepository 创建 Repository 聚合
func NewRepository(opts Options) *Repository {
	var notice NoticeRepository
	if opts.Redis != nil {
		notice = NewRedisNoticeRepo(opts.Redis)
	} else {
		notice = NewMemoryNoticeRepo()
	}

	return &Repository{
		Course:   NewCourseRepo(opts.API),
		Calendar: NewCalendarRepo(opts.Calendar),
		SyncLog:  NewSyncLogRepo(opts.DB),
		Notice:   notice,
	}
}
