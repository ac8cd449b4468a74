package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolweb/config"
	"schoolweb/internal/model"
	"schoolweb/internal/repository"
	"schoolweb/internal/schedule"
	pkgerrors "schoolweb/pkg/errors"
	"schoolweb/pkg/session"
)

// 单个阶段内并发的日历调用上限
const maxCalendarFanOut = 8

// ReconcileStatus 日历同步结果状态
type ReconcileStatus string

const (
	ReconcileSynced   ReconcileStatus = "synced"
	ReconcileDisabled ReconcileStatus = "disabled"
	ReconcileDegraded ReconcileStatus = "degraded"
)

// ReconcileOutcome 一次日历同步的结果
// 降级只体现在 Status 与 Cause 上，从不作为错误返回给课程保存流程
type ReconcileOutcome struct {
	Status  ReconcileStatus
	Action  string
	Created int
	Deleted int
	Kept    int
	Warning string
	Cause   error
}

// Degraded 同步是否部分或全部失败
func (o ReconcileOutcome) Degraded() bool {
	return o.Status == ReconcileDegraded
}

// ReconcilePlan 持久化之前计算好的变更计划
//
// 流程：CHECK_ENABLED → FETCH_EXISTING → COMPUTE_DIFF 在 Plan* 中完成，
// 课程保存后由 Apply 执行 APPLY_DELETES → APPLY_CREATES。
type ReconcilePlan struct {
	action   string
	courseID string
	enabled  bool
	diff     schedule.Diff
	desired  []model.CourseTime
	fetchErr error
}

// Reconciler 保持日历事件与课程时间段一致
type Reconciler interface {
	// PlanCreate 新建课程：所有时间段都需要新建事件
	PlanCreate(course *model.Course) *ReconcilePlan
	// PlanUpdate 编辑课程：读取已持久化的时间段并与 desired 比较，
	// 沿用事件的 EventID 会写回 desired.Times，随课程更新一并保存。
	// 未启用或读取失败时 desired.Times 保持表单回传的 EventID 不变
	PlanUpdate(ctx context.Context, courseID string, desired *model.Course) *ReconcilePlan
	// PlanDelete 删除课程：所有已关联事件都需要删除
	PlanDelete(ctx context.Context, courseID string) *ReconcilePlan
	// Apply 执行计划；saved 为持久化服务返回的课程（删除时为 nil）
	Apply(ctx context.Context, saved *model.Course, plan *ReconcilePlan) ReconcileOutcome
}

type reconciler struct {
	cfg    *config.CalendarConfig
	repo   *repository.Repository
	notice NoticeService
	logger *zap.Logger
}

// NewReconciler 创建 Reconciler 实例
func NewReconciler(cfg *config.CalendarConfig, repo *repository.Repository, notice NoticeService, logger *zap.Logger) Reconciler {
	return &reconciler{cfg: cfg, repo: repo, notice: notice, logger: logger.Named("reconciler")}
}

// ────────────────────── Plan ──────────────────────

func (r *reconciler) PlanCreate(course *model.Course) *ReconcilePlan {
	plan := &ReconcilePlan{action: model.SyncActionCreate, enabled: r.cfg.Enabled}
	if !plan.enabled {
		return plan
	}

	plan.diff = schedule.ComputeDiff(nil, course.Times)
	plan.diff.CarryEventIDs(course.Times)
	plan.desired = cloneTimes(course.Times)
	return plan
}

func (r *reconciler) PlanUpdate(ctx context.Context, courseID string, desired *model.Course) *ReconcilePlan {
	plan := &ReconcilePlan{action: model.SyncActionUpdate, courseID: courseID, enabled: r.cfg.Enabled}
	if !plan.enabled {
		return plan
	}

	previous, err := r.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		// 无法比较时不改动关联，旧事件留到下次编辑再处理
		plan.fetchErr = err
		return plan
	}

	plan.diff = schedule.ComputeDiff(previous.Times, desired.Times)
	if schedule.HeaderChanged(previous, desired) {
		plan.diff.RecreateKept()
	}
	plan.diff.CarryEventIDs(desired.Times)
	plan.desired = cloneTimes(desired.Times)
	return plan
}

func (r *reconciler) PlanDelete(ctx context.Context, courseID string) *ReconcilePlan {
	plan := &ReconcilePlan{action: model.SyncActionDelete, courseID: courseID, enabled: r.cfg.Enabled}
	if !plan.enabled {
		return plan
	}

	previous, err := r.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		plan.fetchErr = err
		return plan
	}
	plan.diff = schedule.ComputeDiff(previous.Times, nil)
	return plan
}

// ────────────────────── Apply ──────────────────────

func (r *reconciler) Apply(ctx context.Context, saved *model.Course, plan *ReconcilePlan) ReconcileOutcome {
	out := ReconcileOutcome{Status: ReconcileSynced, Action: plan.action}
	if !plan.enabled {
		out.Status = ReconcileDisabled
		return out
	}

	if saved != nil && saved.ID != "" {
		plan.courseID = saved.ID
	}
	// 已发出的日历调用不随请求取消而中断
	ctx = context.WithoutCancel(ctx)

	if plan.fetchErr != nil {
		return r.finish(ctx, plan, out, fmt.Errorf("读取课程时间段失败: %w", plan.fetchErr))
	}
	out.Kept = len(plan.diff.ToKeep)
	if plan.diff.Empty() {
		return r.finish(ctx, plan, out, nil)
	}

	deleted, err := r.applyDeletes(ctx, plan.diff.ToDelete)
	out.Deleted = deleted
	if err != nil {
		return r.finish(ctx, plan, out, err)
	}

	if saved == nil || len(plan.diff.ToCreate) == 0 {
		return r.finish(ctx, plan, out, nil)
	}
	if saved.StartDate == nil {
		r.logger.Info("课程未设置开始日期，跳过创建日历事件",
			zap.String("course_id", plan.courseID),
			zap.Int("pending", len(plan.diff.ToCreate)),
		)
		return r.finish(ctx, plan, out, nil)
	}

	created, err := r.applyCreates(ctx, saved, plan)
	out.Created = created
	return r.finish(ctx, plan, out, err)
}

// applyDeletes 并发删除事件，单个失败不影响其他删除
// 日历服务返回 404 视为已删除
func (r *reconciler) applyDeletes(ctx context.Context, slots []model.CourseTime) (int, error) {
	var (
		g       errgroup.Group
		deleted atomic.Int32
	)
	g.SetLimit(maxCalendarFanOut)

	for _, slot := range slots {
		if slot.EventID == "" {
			continue
		}
		eventID := slot.EventID
		g.Go(func() error {
			err := r.repo.Calendar.DeleteEvent(ctx, eventID)
			if err != nil && !pkgerrors.IsNotFound(err) {
				r.logger.Warn("删除日历事件失败", zap.String("event_id", eventID), zap.Error(err))
				return err
			}
			deleted.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(deleted.Load()), err
}

// applyCreates 并发创建事件并将 EventID 写回课程
// 部分失败时已成功的 EventID 仍然写回，避免下次编辑重复创建
func (r *reconciler) applyCreates(ctx context.Context, saved *model.Course, plan *ReconcilePlan) (int, error) {
	times, target := alignSaved(saved.Times, plan.desired)

	var (
		g       errgroup.Group
		created atomic.Int32
	)
	g.SetLimit(maxCalendarFanOut)

	for _, idx := range plan.diff.ToCreate {
		pos := target[idx]
		g.Go(func() error {
			req, err := r.eventRequest(saved, times[pos])
			if err != nil {
				return err
			}
			eventID, err := r.repo.Calendar.CreateEvent(ctx, req)
			if err != nil {
				r.logger.Warn("创建日历事件失败",
					zap.String("course_id", saved.ID),
					zap.Int("slot", idx),
					zap.Error(err),
				)
				return err
			}
			times[pos].EventID = eventID
			created.Add(1)
			return nil
		})
	}
	createErr := g.Wait()

	n := int(created.Load())
	if n > 0 {
		if err := r.repo.Course.UpdateTimes(ctx, saved.ID, times); err != nil {
			return n, errors.Join(createErr, fmt.Errorf("写回事件 ID 失败: %w", err))
		}
		saved.Times = times
	}
	return n, createErr
}

func (r *reconciler) eventRequest(course *model.Course, slot model.CourseTime) (*model.CalendarEventRequest, error) {
	iso, err := schedule.ISOWeekday(slot.Weekday)
	if err != nil {
		return nil, err
	}
	loc := r.cfg.Location()
	start := schedule.FirstOccurrence(*course.StartDate, slot, loc)

	req := &model.CalendarEventRequest{
		Summary:      course.Name,
		Location:     slot.Room,
		Description:  course.Description,
		StartDate:    start.Format(time.RFC3339),
		Duration:     slot.Duration,
		Frequency:    "WEEKLY",
		Weekday:      iso,
		ScopeID:      course.ID,
		CourseID:     course.ID,
		CourseTimeID: slot.ID,
	}
	if course.UntilDate != nil {
		req.RepeatUntil = schedule.EndOfDay(*course.UntilDate, loc).Format(time.RFC3339)
	}
	return req, nil
}

// finish 汇总结果：记录同步日志，降级时告警并提示用户
func (r *reconciler) finish(ctx context.Context, plan *ReconcilePlan, out ReconcileOutcome, cause error) ReconcileOutcome {
	if cause != nil {
		out.Status = ReconcileDegraded
		out.Cause = cause
		out.Warning = r.cfg.DegradedMessage

		r.logger.Warn("日历同步降级，课程数据已保存",
			zap.String("course_id", plan.courseID),
			zap.String("action", plan.action),
			zap.Int("created", out.Created),
			zap.Int("deleted", out.Deleted),
			zap.Error(cause),
		)
		r.notice.Warn(ctx, plan.courseID, r.cfg.DegradedMessage)
	}

	r.recordSyncLog(ctx, plan, out)
	return out
}

func (r *reconciler) recordSyncLog(ctx context.Context, plan *ReconcilePlan, out ReconcileOutcome) {
	if r.repo.SyncLog == nil {
		return
	}
	entry := &model.CalendarSyncLog{
		CourseID: plan.courseID,
		Action:   plan.action,
		Status:   string(out.Status),
		Created:  out.Created,
		Deleted:  out.Deleted,
		Kept:     out.Kept,
	}
	if out.Cause != nil {
		cause := out.Cause.Error()
		entry.Cause = &cause
	}
	if s, ok := session.FromContext(ctx); ok {
		entry.UserID = s.UserID
		entry.RequestID = s.RequestID
	}

	if err := r.repo.SyncLog.Create(ctx, entry); err != nil {
		r.logger.Error("记录日历同步日志失败", zap.String("course_id", plan.courseID), zap.Error(err))
	}
}

// alignSaved 将提交的时间段对应到持久化服务返回的时间段
// 依次按时间段 ID、结构、下标匹配；数量不一致时按提交的时间段处理
func alignSaved(saved, desired []model.CourseTime) ([]model.CourseTime, []int) {
	target := make([]int, len(desired))
	if len(saved) != len(desired) {
		for i := range target {
			target[i] = i
		}
		return cloneTimes(desired), target
	}

	byID := make(map[string]int, len(saved))
	for j, t := range saved {
		if t.ID != "" {
			byID[t.ID] = j
		}
	}
	used := make([]bool, len(saved))
	for i, d := range desired {
		target[i] = -1
		if j, ok := byID[d.ID]; ok && d.ID != "" && !used[j] {
			target[i] = j
			used[j] = true
		}
	}
	for i, d := range desired {
		if target[i] >= 0 {
			continue
		}
		for j := range saved {
			if !used[j] && saved[j].SameSchedule(d) {
				target[i] = j
				used[j] = true
				break
			}
		}
	}
	for i := range desired {
		if target[i] >= 0 {
			continue
		}
		j := i
		if used[j] {
			j = slices.Index(used, false)
		}
		target[i] = j
		used[j] = true
	}
	return cloneTimes(saved), target
}

func cloneTimes(times []model.CourseTime) []model.CourseTime {
	if times == nil {
		return nil
	}
	out := make([]model.CourseTime, len(times))
	copy(out, times)
	return out
}
