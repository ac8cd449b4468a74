package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 星期序号以周一为 0，与界面下拉框取值一致（不是 ISO 编号）
var weekdayLabels = [7]string{
	"Montag",
	"Dienstag",
	"Mittwoch",
	"Donnerstag",
	"Freitag",
	"Samstag",
	"Sonntag",
}

// WeekdayLabel 星期序号 → 界面名称
func WeekdayLabel(weekday int) (string, error) {
	if weekday < 0 || weekday >= len(weekdayLabels) {
		return "", fmt.Errorf("%w: %d", ErrUnknownWeekday, weekday)
	}
	return weekdayLabels[weekday], nil
}

// WeekdayFromLabel 界面名称 → 星期序号（忽略大小写与首尾空白）
func WeekdayFromLabel(label string) (int, error) {
	l := strings.TrimSpace(label)
	for i, name := range weekdayLabels {
		if strings.EqualFold(name, l) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, label)
}

// ParseWeekday 接受表单提交的数字序号（"0"-"6"）或星期名称
func ParseWeekday(value string) (int, error) {
	v := strings.TrimSpace(value)
	if n, err := strconv.Atoi(v); err == nil {
		if _, err := WeekdayLabel(n); err != nil {
			return 0, err
		}
		return n, nil
	}
	return WeekdayFromLabel(v)
}

// ISOWeekday 星期序号 → ISO 8601 编号（1=周一 … 7=周日）
func ISOWeekday(weekday int) (int, error) {
	if _, err := WeekdayLabel(weekday); err != nil {
		return 0, err
	}
	return weekday + 1, nil
}

// FromGoWeekday time.Weekday（0=周日）→ 星期序号（0=周一）
func FromGoWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// WeekdayLabels 按序号排列的星期名称（界面下拉框选项）
func WeekdayLabels() []string {
	labels := make([]string, len(weekdayLabels))
	copy(labels, weekdayLabels[:])
	return labels
}
