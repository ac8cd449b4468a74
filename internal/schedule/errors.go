package schedule

import "errors"

// ── 课程时间模块错误 ──
// 前四种属于调用方输入错误，必须在持久化之前拒绝

var (
	ErrInvalidTimeFormat   = errors.New("时间格式无效，应为 HH:mm")
	ErrUnknownWeekday      = errors.New("未知的星期")
	ErrInvalidDuration     = errors.New("时长必须为正整数分钟")
	ErrInvalidDateRange    = errors.New("开始日期不能晚于结束日期")
	ErrCalendarUnavailable = errors.New("日历服务不可用")
)
