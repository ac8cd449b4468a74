package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	msPerMinute int64 = 60 * 1000
	msPerHour         = 60 * msPerMinute
	msPerDay          = 24 * msPerHour
)

// DateLayout 界面日期格式
const DateLayout = "02.01.2006"

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

// 表单日期可接受的格式，依次尝试
var dateLayouts = []string{
	DateLayout,
	"02:01:2006",
	"2006-01-02",
}

// DecodeTime 界面表示 → 存储表示
// uiTime 为 24 小时制 "HH:mm"，minutes 为时长分钟数
func DecodeTime(uiTime string, minutes int) (startOffsetMs, durationMs int64, err error) {
	m := clockPattern.FindStringSubmatch(uiTime)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, uiTime)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, uiTime)
	}
	if minutes < 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidDuration, minutes)
	}

	startOffsetMs = int64(hh)*msPerHour + int64(mm)*msPerMinute
	durationMs = int64(minutes) * msPerMinute
	return startOffsetMs, durationMs, nil
}

// EncodeTime 存储表示 → 界面表示，时长按分钟向零截断
func EncodeTime(startOffsetMs, durationMs int64) (uiTime string, minutes int) {
	offset := ((startOffsetMs % msPerDay) + msPerDay) % msPerDay
	hh := offset / msPerHour
	mm := (offset % msPerHour) / msPerMinute
	return fmt.Sprintf("%02d:%02d", hh, mm), int(durationMs / msPerMinute)
}

// ParseDate 解析表单日期
// 解析失败返回 ok=false，调用方应省略该字段（后端保持原值）
func ParseDate(value string, loc *time.Location) (t time.Time, ok bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, v, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatDate 存储日期 → 界面 DD.MM.YYYY，nil 返回空串
func FormatDate(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DateLayout)
}

// OnDate 某日零点 + 偏移毫秒（按墙上时间计算，跨夏令时不漂移）
func OnDate(day time.Time, startOffsetMs int64, loc *time.Location) time.Time {
	d := day.In(loc)
	offset := ((startOffsetMs % msPerDay) + msPerDay) % msPerDay
	hh := int(offset / msPerHour)
	mm := int((offset % msPerHour) / msPerMinute)
	sec := int((offset % msPerMinute) / 1000)
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, sec, 0, loc)
}
