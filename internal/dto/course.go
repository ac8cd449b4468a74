package dto

import "schoolweb/internal/schedule"

// ── 课程/团队模块 DTO ──

// CourseForm 创建、编辑、复制课程的表单（界面表示）
// 日期为 DD.MM.YYYY，无法解析时视为未填写
type CourseForm struct {
	Name            string             `json:"name"            binding:"required,max=200"`
	Description     string             `json:"description"     binding:"omitempty,max=5000"`
	Color           string             `json:"color"           binding:"omitempty,hexcolor"`
	TeacherIDs      []string           `json:"teacherIds"`
	ClassIDs        []string           `json:"classIds"`
	UserIDs         []string           `json:"userIds"`
	SubstitutionIDs []string           `json:"substitutionIds"`
	StartDate       string             `json:"startDate"`
	UntilDate       string             `json:"untilDate"`
	Times           []schedule.RawSlot `json:"times"`
}

// MembersRequest 团队成员增删请求
type MembersRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

// CourseTimeView 时间段（界面表示）
type CourseTimeView struct {
	ID           string `json:"_id,omitempty"`
	Count        int    `json:"count"`
	Weekday      int    `json:"weekday"`
	WeekdayLabel string `json:"weekdayLabel"`
	StartTime    string `json:"startTime"` // HH:mm
	Duration     int    `json:"duration"`  // 分钟
	Room         string `json:"room,omitempty"`
	EventID      string `json:"eventId,omitempty"`
}

// CourseCard 概览页课程卡片
type CourseCard struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Content        string   `json:"content"` // 描述摘要
	Background     string   `json:"background"`
	MemberAmount   int      `json:"memberAmount"`
	SecondaryTitle []string `json:"secondaryTitle"` // 每个时间段一行
}

// CourseOverview 概览页（进行中 / 已归档，各自拆出代课课程）
type CourseOverview struct {
	ActiveCourses         []CourseCard  `json:"activeCourses"`
	ActiveSubstitutions   []CourseCard  `json:"activeSubstitutions"`
	ArchivedCourses       []CourseCard  `json:"archivedCourses"`
	ArchivedSubstitutions []CourseCard  `json:"archivedSubstitutions"`
	Total                 OverviewTotal `json:"total"`
	Empty                 bool          `json:"empty"`
	IsStudent             bool          `json:"isStudent"`
}

// OverviewTotal 后端返回的总数（不受 limit 影响）
type OverviewTotal struct {
	Active   int `json:"active"`
	Archived int `json:"archived"`
}

// CourseFormData 表单回显数据
type CourseFormData struct {
	ID              string           `json:"_id,omitempty"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Color           string           `json:"color"`
	TeacherIDs      []string         `json:"teacherIds"`
	ClassIDs        []string         `json:"classIds"`
	UserIDs         []string         `json:"userIds"`
	SubstitutionIDs []string         `json:"substitutionIds"`
	StartDate       string           `json:"startDate"` // DD.MM.YYYY
	UntilDate       string           `json:"untilDate"`
	Times           []CourseTimeView `json:"times"`
}

// CourseFormView 创建/编辑/复制页面
type CourseFormView struct {
	Title       string         `json:"title"`
	Action      string         `json:"action"`
	Method      string         `json:"method"`
	SubmitLabel string         `json:"submitLabel"`
	CloseLabel  string         `json:"closeLabel"`
	Course      CourseFormData `json:"course"`
	Colors      []string       `json:"colors"`
	Weekdays    []string       `json:"weekdays"`
}

// CourseDetail 课程详情
type CourseDetail struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Color       string           `json:"color"`
	StartDate   string           `json:"startDate"`
	UntilDate   string           `json:"untilDate"`
	Times       []CourseTimeView `json:"times"`
	NextEvent   string           `json:"nextEvent,omitempty"` // RFC3339，无后续课时为空
	Breadcrumb  []Breadcrumb     `json:"breadcrumb"`
	EditURL     string           `json:"editUrl"`
}

// Breadcrumb 面包屑
type Breadcrumb struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CalendarResult 日历同步结果（降级不影响保存结果）
type CalendarResult struct {
	Status  string `json:"status"` // synced | disabled | degraded
	Created int    `json:"created"`
	Deleted int    `json:"deleted"`
	Kept    int    `json:"kept"`
	Warning string `json:"warning,omitempty"`
}

// SaveResponse 保存/复制/删除结果
type SaveResponse struct {
	ID       string          `json:"_id"`
	Redirect string          `json:"redirect"`
	Calendar *CalendarResult `json:"calendar,omitempty"`
}

// SyncLogResponse 日历同步记录
type SyncLogResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Created   int    `json:"created"`
	Deleted   int    `json:"deleted"`
	Kept      int    `json:"kept"`
	Cause     string `json:"cause,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SyncLogListRequest 同步记录查询参数
type SyncLogListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// GetLimit 获取条数（含默认值）
func (r *SyncLogListRequest) GetLimit() int {
	if r.Limit <= 0 {
		return 50
	}
	return r.Limit
}

// ── 分享与加入 ──

// ShareResponse 课程分享码
type ShareResponse struct {
	ID         string `json:"_id"`
	ShareToken string `json:"shareToken"`
}

// ShareLookupResponse 分享码查询结果，status 为 success 或 error
type ShareLookupResponse struct {
	Msg    string `json:"msg"`
	Status string `json:"status"`
}

// ImportRequest 通过分享码导入课程
type ImportRequest struct {
	ShareToken string `json:"shareToken" binding:"required,max=64"`
	Name       string `json:"name"       binding:"omitempty,max=200"`
}

// JoinRequest 学生通过邀请链接加入课程
type JoinRequest struct {
	Link string `form:"link" binding:"omitempty,max=128"`
}
