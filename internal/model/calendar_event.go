package model

// CalendarEventRequest 日历服务创建事件请求体（与日历服务约定一致）
type CalendarEventRequest struct {
	Summary      string `json:"summary"`
	Location     string `json:"location,omitempty"`
	Description  string `json:"description,omitempty"`
	StartDate    string `json:"startDate"` // ISO 8601，带时区偏移
	Duration     int64  `json:"duration"`  // 毫秒
	RepeatUntil  string `json:"repeat_until,omitempty"`
	Frequency    string `json:"frequency"` // WEEKLY
	Weekday      int    `json:"weekday"`   // ISO 1=周一 … 7=周日
	ScopeID      string `json:"scopeId"`
	CourseID     string `json:"courseId"`
	CourseTimeID string `json:"courseTimeId,omitempty"`
}

// CalendarEvent 日历服务创建事件响应
type CalendarEvent struct {
	EventID string `json:"eventId"`
}
