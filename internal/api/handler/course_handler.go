package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolweb/internal/dto"
	"schoolweb/internal/schedule"
	"schoolweb/internal/service"
	"schoolweb/pkg/response"
)

// CourseHandler 课程/团队模块 HTTP 处理器
// 课程与团队各注册一个实例，区别只在 CourseService 的 kind
type CourseHandler struct {
	courseSvc service.CourseService
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(courseSvc service.CourseService) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc}
}

// Overview 我的课程概览
// GET /api/v1/courses
func (h *CourseHandler) Overview(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	overview, err := h.courseSvc.Overview(c.Request.Context(), sess)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, overview)
}

// NewForm 新建课程表单
// GET /api/v1/courses/new
func (h *CourseHandler) NewForm(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	response.OK(c, h.courseSvc.NewForm(c.Request.Context(), sess))
}

// GetCourse 课程详情
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	detail, err := h.courseSvc.Detail(c.Request.Context(), id)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, detail)
}

// EditForm 编辑课程表单
// GET /api/v1/courses/:id/edit
func (h *CourseHandler) EditForm(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	view, err := h.courseSvc.EditForm(c.Request.Context(), id)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, view)
}

// CopyForm 复制课程表单
// GET /api/v1/courses/:id/copy
func (h *CourseHandler) CopyForm(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	view, err := h.courseSvc.CopyForm(c.Request.Context(), id)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, view)
}

// CreateCourse 创建课程
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req dto.CourseForm
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.courseSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateCourse 更新课程
// PATCH /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	var req dto.CourseForm
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.courseSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// CopyCourse 复制课程
// POST /api/v1/courses/copy/:id
func (h *CourseHandler) CopyCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	var req dto.CourseForm
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.courseSvc.Copy(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, result)
}

// DeleteCourse 删除课程
// DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	result, err := h.courseSvc.Delete(c.Request.Context(), id)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// AddMembers 添加团队成员
// POST /api/v1/teams/:id/members
func (h *CourseHandler) AddMembers(c *gin.Context) {
	h.changeMembers(c, h.courseSvc.AddMembers)
}

// RemoveMembers 移除团队成员
// DELETE /api/v1/teams/:id/members
func (h *CourseHandler) RemoveMembers(c *gin.Context) {
	h.changeMembers(c, h.courseSvc.RemoveMembers)
}

func (h *CourseHandler) changeMembers(c *gin.Context, apply func(ctx context.Context, id string, userIDs []string) error) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	var req dto.MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := apply(c.Request.Context(), id, req.UserIDs); err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, nil)
}

// Share 获取课程分享码
// GET /api/v1/courses/:id/share
func (h *CourseHandler) Share(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	share, err := h.courseSvc.Share(c.Request.Context(), id)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, share)
}

// LookupShare 查询分享码对应的课程名称
// GET /api/v1/courses/share/:token
func (h *CourseHandler) LookupShare(c *gin.Context) {
	result, err := h.courseSvc.LookupShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// Import 通过分享码导入课程
// POST /api/v1/courses/import
func (h *CourseHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.courseSvc.Import(c.Request.Context(), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, result)
}

// Join 学生通过邀请链接加入课程
// POST /api/v1/courses/:id/join?link=
func (h *CourseHandler) Join(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	var req dto.JoinRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.courseSvc.Join(c.Request.Context(), id, req.Link)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// ListSyncLogs 课程的日历同步记录
// GET /api/v1/courses/:id/sync-logs?limit=50
func (h *CourseHandler) ListSyncLogs(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}

	var req dto.SyncLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	logs, err := h.courseSvc.ListSyncLogs(c.Request.Context(), id, req.GetLimit())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKList(c, logs, len(logs))
}

func courseID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return "", false
	}
	return id, true
}

func (h *CourseHandler) handleCourseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidTimeFormat):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "时间格式无效，应为 HH:mm", err.Error())
	case errors.Is(err, schedule.ErrUnknownWeekday):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17002, "无效的星期", err.Error())
	case errors.Is(err, schedule.ErrInvalidDuration):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17003, "时长必须大于 0", err.Error())
	case errors.Is(err, schedule.ErrInvalidDateRange):
		response.BadRequest(c, 17004, "开始日期不能晚于结束日期")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 17101, "课程不存在")
	case errors.Is(err, service.ErrShareNotFound):
		response.NotFound(c, 17102, "分享码无效")
	case errors.Is(err, service.ErrNotStudent):
		response.Forbidden(c, 17103, "只有学生可以加入课程")
	case errors.Is(err, service.ErrAlreadyMember):
		response.Error(c, http.StatusConflict, 17104, "已是课程成员")
	case errors.Is(err, service.ErrCoursePersistence):
		response.BadGateway(c, 17201, "课程保存失败", err.Error())
	default:
		response.InternalError(c)
	}
}
