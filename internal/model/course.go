package model

import "time"

// Course 课程/团队记录（存储表示），对应后端 /courses 资源
// 团队与课程共用同一资源
type Course struct {
	ID              string       `json:"_id,omitempty"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Color           string       `json:"color,omitempty"`
	SchoolID        string       `json:"schoolId,omitempty"`
	TeacherIDs      []string     `json:"teacherIds,omitempty"` // 为空时保持原值
	ClassIDs        []string     `json:"classIds"`
	UserIDs         []string     `json:"userIds"`
	SubstitutionIDs []string     `json:"substitutionIds"`
	StartDate       *time.Time   `json:"startDate,omitempty"` // nil 表示保持原值
	UntilDate       *time.Time   `json:"untilDate,omitempty"`
	Times           []CourseTime `json:"times"`
}

// CourseTime 课程的每周固定时间段（存储表示）
type CourseTime struct {
	ID        string `json:"_id,omitempty"`
	Weekday   int    `json:"weekday"`           // 0=周一 … 6=周日
	StartTime int64  `json:"startTime"`         // 距当天零点的毫秒数
	Duration  int64  `json:"duration"`          // 毫秒
	Room      string `json:"room,omitempty"`
	EventID   string `json:"eventId,omitempty"` // 由日历同步写入，编辑表单原样回传
	Count     int    `json:"-"`                 // 界面展示序号
}

// SameSchedule 判断两个时间段在日历意义上是否一致（忽略 ID 与 EventID）
func (t CourseTime) SameSchedule(o CourseTime) bool {
	return t.Weekday == o.Weekday &&
		t.StartTime == o.StartTime &&
		t.Duration == o.Duration &&
		t.Room == o.Room
}

// CoursePage 后端分页列表
type CoursePage struct {
	Total int      `json:"total"`
	Limit int      `json:"limit"`
	Skip  int      `json:"skip"`
	Data  []Course `json:"data"`
}

// CourseCopyRequest 复制课程请求体
type CourseCopyRequest struct {
	SourceID string `json:"_id"`
	Course
}

// CourseShare 课程分享信息
type CourseShare struct {
	ID         string `json:"_id"`
	ShareToken string `json:"shareToken"`
}

// CourseImportRequest 通过分享码导入课程
type CourseImportRequest struct {
	ShareToken string `json:"shareToken"`
	CourseName string `json:"courseName,omitempty"`
}
