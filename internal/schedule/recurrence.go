package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"schoolweb/internal/model"
)

var rruleWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// FirstOccurrence 首次事件时间 = 课程开始日期 + 时间段偏移
func FirstOccurrence(startDate time.Time, slot model.CourseTime, loc *time.Location) time.Time {
	return OnDate(startDate, slot.StartTime, loc)
}

// EndOfDay 结束日期当天最后一秒（重复截止时间包含当天）
func EndOfDay(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
}

// WeeklyOption 构建时间段的每周重复规则
// dtstart 为首次事件时间，until 为 nil 时无截止
func WeeklyOption(slot model.CourseTime, dtstart time.Time, until *time.Time, loc *time.Location) (rrule.ROption, error) {
	if _, err := WeekdayLabel(slot.Weekday); err != nil {
		return rrule.ROption{}, err
	}
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Byweekday: []rrule.Weekday{rruleWeekdays[slot.Weekday]},
	}
	if until != nil {
		opt.Until = EndOfDay(*until, loc)
	}
	return opt, nil
}

// RRuleText 时间段的 RRULE 文本（不含 DTSTART），用于 ICS 导出
func RRuleText(slot model.CourseTime, dtstart time.Time, until *time.Time, loc *time.Location) (string, error) {
	opt, err := WeeklyOption(slot, dtstart, until, loc)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// NextOccurrence 课程所有时间段中 now 之后最早的一次上课时间
// 没有开始日期时从 now 所在日期起算
func NextOccurrence(course *model.Course, now time.Time, loc *time.Location) (time.Time, bool) {
	anchor := now
	if course.StartDate != nil {
		anchor = *course.StartDate
	}

	var next time.Time
	for _, slot := range course.Times {
		opt, err := WeeklyOption(slot, FirstOccurrence(anchor, slot, loc), course.UntilDate, loc)
		if err != nil {
			continue
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			continue
		}
		t := r.After(now, true)
		if t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero()
}

// DescribeSlot 时间段的一行展示文本，如 "Mittwoch 14:30 | A101"
func DescribeSlot(slot model.CourseTime) string {
	label, err := WeekdayLabel(slot.Weekday)
	if err != nil {
		label = "?"
	}
	clock, _ := EncodeTime(slot.StartTime, slot.Duration)
	if slot.Room == "" {
		return fmt.Sprintf("%s %s", label, clock)
	}
	return fmt.Sprintf("%s %s | %s", label, clock, slot.Room)
}

// AlignedOccurrence 开始日期之后（含当天）第一个落在时间段星期上的上课时间
// ICS 的 DTSTART 本身计为一次发生，必须与 BYDAY 对齐
func AlignedOccurrence(startDate time.Time, slot model.CourseTime, loc *time.Location) time.Time {
	t := FirstOccurrence(startDate, slot, loc)
	for i := 0; i < 7 && FromGoWeekday(t.Weekday()) != slot.Weekday; i++ {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
