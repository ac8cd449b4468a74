package handler

import "schoolweb/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Courses *CourseHandler
	Teams   *CourseHandler
	Export  *ExportHandler
	Notice  *NoticeHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Courses: NewCourseHandler(svc.Courses),
		Teams:   NewCourseHandler(svc.Teams),
		Export:  NewExportHandler(svc.Export),
		Notice:  NewNoticeHandler(svc.Notice),
	}
}
