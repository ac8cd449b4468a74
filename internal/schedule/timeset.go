package schedule

import (
	"fmt"
	"sort"
	"time"

	"schoolweb/internal/model"
)

// RawSlot 表单提交的时间段（界面表示）
type RawSlot struct {
	ID        string `json:"_id"`
	Weekday   string `json:"weekday"`   // "0"-"6" 或星期名称
	StartTime string `json:"startTime"` // HH:mm
	Duration  int    `json:"duration"`  // 分钟
	Room      string `json:"room"`
	EventID   string `json:"eventId"` // 编辑表单原样回传，只由日历同步修改
}

// Normalize 将表单时间段转换为存储表示
// 保持输入顺序（界面增删顺序稳定），不去重也不排序；Count 为从 0 开始的展示序号
func Normalize(raw []RawSlot) ([]model.CourseTime, error) {
	times := make([]model.CourseTime, 0, len(raw))
	for i, r := range raw {
		weekday, err := ParseWeekday(r.Weekday)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个时间段: %w", i+1, err)
		}
		start, duration, err := DecodeTime(r.StartTime, r.Duration)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个时间段: %w", i+1, err)
		}
		if duration <= 0 {
			return nil, fmt.Errorf("第 %d 个时间段: %w", i+1, ErrInvalidDuration)
		}
		times = append(times, model.CourseTime{
			ID:        r.ID,
			Weekday:   weekday,
			StartTime: start,
			Duration:  duration,
			Room:      r.Room,
			EventID:   r.EventID,
			Count:     i,
		})
	}
	return times, nil
}

// ValidateRange 开始、结束日期同时存在时 start <= until
func ValidateRange(start, until *time.Time) error {
	if start != nil && until != nil && start.After(*until) {
		return ErrInvalidDateRange
	}
	return nil
}

// Kept 无需改动的时间段：沿用旧事件
type Kept struct {
	Index    int              // next 中的下标
	Previous model.CourseTime // 对应的旧时间段
}

// Diff 新旧时间段集合的差异
type Diff struct {
	ToCreate []int              // next 中需要新建事件的下标（升序）
	ToKeep   []Kept             // 沿用旧事件（按 next 下标升序）
	ToDelete []model.CourseTime // 需要删除事件的旧时间段（按 previous 顺序）
}

// Empty 无任何日历调用
func (d Diff) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToDelete) == 0
}

// RecreateKept 课程级字段（名称、描述、起止日期）变化时，沿用的事件全部重建
func (d *Diff) RecreateKept() {
	for _, k := range d.ToKeep {
		d.ToDelete = append(d.ToDelete, k.Previous)
		d.ToCreate = append(d.ToCreate, k.Index)
	}
	d.ToKeep = nil
	sort.Ints(d.ToCreate)
}

// CarryEventIDs 将沿用事件的 EventID 写入 next，待新建的时间段清空 EventID
func (d Diff) CarryEventIDs(next []model.CourseTime) {
	for _, idx := range d.ToCreate {
		next[idx].EventID = ""
	}
	for _, k := range d.ToKeep {
		next[k.Index].EventID = k.Previous.EventID
	}
}

// ComputeDiff 计算最小变更集
//
// 匹配优先级：EventID → 时间段 ID → 结构相等。
//   - 没有旧事件的时间段一律新建
//   - 过期的 EventID（旧集合中不存在）不阻止重建
//   - 旧集合中未被匹配且已关联事件的时间段需要删除
func ComputeDiff(previous, next []model.CourseTime) Diff {
	claimed := make([]bool, len(previous))
	resolved := make([]bool, len(next))
	deletes := make([]bool, len(previous))
	var d Diff

	settle := func(i, j int) {
		resolved[i] = true
		claimed[j] = true
		prev := previous[j]
		switch {
		case prev.EventID == "":
			d.ToCreate = append(d.ToCreate, i)
		case prev.SameSchedule(next[i]):
			d.ToKeep = append(d.ToKeep, Kept{Index: i, Previous: prev})
		default:
			deletes[j] = true
			d.ToCreate = append(d.ToCreate, i)
		}
	}

	// 1. EventID
	for i := range next {
		if next[i].EventID == "" {
			continue
		}
		for j := range previous {
			if !claimed[j] && previous[j].EventID == next[i].EventID {
				settle(i, j)
				break
			}
		}
	}

	// 2. 时间段 ID
	for i := range next {
		if resolved[i] || next[i].ID == "" {
			continue
		}
		for j := range previous {
			if !claimed[j] && previous[j].ID == next[i].ID {
				settle(i, j)
				break
			}
		}
	}

	// 3. 结构相等（只匹配已关联事件的旧时间段）
	for i := range next {
		if resolved[i] {
			continue
		}
		for j := range previous {
			if !claimed[j] && previous[j].EventID != "" && previous[j].SameSchedule(next[i]) {
				settle(i, j)
				break
			}
		}
		if !resolved[i] {
			resolved[i] = true
			d.ToCreate = append(d.ToCreate, i)
		}
	}

	for j, prev := range previous {
		if prev.EventID != "" && (deletes[j] || !claimed[j]) {
			d.ToDelete = append(d.ToDelete, prev)
		}
	}

	sort.Ints(d.ToCreate)
	sort.Slice(d.ToKeep, func(a, b int) bool { return d.ToKeep[a].Index < d.ToKeep[b].Index })
	return d
}

// HeaderChanged 课程级事件字段是否变化
// next 中为 nil 的日期表示保持原值，不视为变化
func HeaderChanged(previous, next *model.Course) bool {
	if previous.Name != next.Name || previous.Description != next.Description {
		return true
	}
	return dateChanged(previous.StartDate, next.StartDate) || dateChanged(previous.UntilDate, next.UntilDate)
}

func dateChanged(previous, next *time.Time) bool {
	if next == nil {
		return false
	}
	return previous == nil || !previous.Equal(*next)
}
