package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"schoolweb/internal/service"
	"schoolweb/pkg/response"
)

const (
	contentTypeICS  = "text/calendar; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportICS 导出课程时间为 iCalendar
// GET /api/v1/courses/:id/export/ics
func (h *ExportHandler) ExportICS(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportSvc.ExportICS(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, contentTypeICS, data)
}

// ExportTimes 导出课程时间表
// GET /api/v1/courses/:id/export/times
func (h *ExportHandler) ExportTimes(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportTimesXLSX(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, contentTypeXLSX, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 17101, "课程不存在")
	case errors.Is(err, service.ErrExportNoTimes):
		response.BadRequest(c, 17301, "课程没有时间段，无法导出")
	case errors.Is(err, service.ErrCoursePersistence):
		response.BadGateway(c, 17201, "读取课程失败", err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
