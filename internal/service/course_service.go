package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolweb/config"
	"schoolweb/internal/dto"
	"schoolweb/internal/model"
	"schoolweb/internal/repository"
	"schoolweb/internal/schedule"
	pkgerrors "schoolweb/pkg/errors"
	"schoolweb/pkg/session"
)

// ── 课程模块业务错误 ──

var (
	ErrCourseNotFound    = errors.New("课程不存在")
	ErrCoursePersistence = errors.New("课程保存失败")
	ErrShareNotFound     = errors.New("分享码无效")
	ErrNotStudent        = errors.New("当前用户不是学生")
	ErrAlreadyMember     = errors.New("已是课程成员")
)

const (
	overviewLimit  = 75
	excerptLength  = 140
	copyNameSuffix = " - Kopie"
)

// 课程颜色选项
var courseColors = []string{"#ACACAC", "#D4AF37", "#00E5FF", "#1DE9B6", "#546E7A", "#FFC400", "#BCAAA4", "#FF4081", "#FFEE58"}

// CourseKind 课程与团队共用后端资源，只在路由与界面文案上区分
type CourseKind string

const (
	KindCourse CourseKind = "courses"
	KindTeam   CourseKind = "teams"
)

type kindLabels struct {
	overview    string
	createTitle string
	createLabel string
	editTitle   string
	copyTitle   string
}

var labelsByKind = map[CourseKind]kindLabels{
	KindCourse: {
		overview:    "Meine Kurse",
		createTitle: "Kurs anlegen",
		createLabel: "Kurs anlegen und Weiter",
		editTitle:   "Kurs bearbeiten",
		copyTitle:   "Kurs klonen",
	},
	KindTeam: {
		overview:    "Meine Teams",
		createTitle: "Team anlegen",
		createLabel: "Team anlegen und Weiter",
		editTitle:   "Team bearbeiten",
		copyTitle:   "Team klonen",
	},
}

// CourseService 课程/团队业务接口
type CourseService interface {
	Overview(ctx context.Context, sess *session.Session) (*dto.CourseOverview, error)
	NewForm(ctx context.Context, sess *session.Session) *dto.CourseFormView
	EditForm(ctx context.Context, id string) (*dto.CourseFormView, error)
	CopyForm(ctx context.Context, id string) (*dto.CourseFormView, error)
	Detail(ctx context.Context, id string) (*dto.CourseDetail, error)
	Create(ctx context.Context, form *dto.CourseForm) (*dto.SaveResponse, error)
	Update(ctx context.Context, id string, form *dto.CourseForm) (*dto.SaveResponse, error)
	Copy(ctx context.Context, sourceID string, form *dto.CourseForm) (*dto.SaveResponse, error)
	Delete(ctx context.Context, id string) (*dto.SaveResponse, error)
	AddMembers(ctx context.Context, id string, userIDs []string) error
	RemoveMembers(ctx context.Context, id string, userIDs []string) error
	ListSyncLogs(ctx context.Context, id string, limit int) ([]dto.SyncLogResponse, error)
	Share(ctx context.Context, id string) (*dto.ShareResponse, error)
	LookupShare(ctx context.Context, token string) (*dto.ShareLookupResponse, error)
	Import(ctx context.Context, req *dto.ImportRequest) (*dto.SaveResponse, error)
	Join(ctx context.Context, id, link string) (*dto.SaveResponse, error)
}

type courseService struct {
	kind       CourseKind
	labels     kindLabels
	loc        *time.Location
	repo       *repository.Repository
	reconciler Reconciler
	notice     NoticeService
	logger     *zap.Logger
	now        func() time.Time
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(kind CourseKind, cfg *config.CalendarConfig, repo *repository.Repository, reconciler Reconciler, notice NoticeService, logger *zap.Logger) CourseService {
	return &courseService{
		kind:       kind,
		labels:     labelsByKind[kind],
		loc:        cfg.Location(),
		repo:       repo,
		reconciler: reconciler,
		notice:     notice,
		logger:     logger.With(zap.String("kind", string(kind))),
		now:        time.Now,
	}
}

func (s *courseService) basePath() string {
	return "/" + string(s.kind)
}

func (s *courseService) detailPath(id string) string {
	return s.basePath() + "/" + id
}

// ────────────────────── Overview ──────────────────────

func (s *courseService) Overview(ctx context.Context, sess *session.Session) (*dto.CourseOverview, error) {
	var active, archived *model.CoursePage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.repo.Course.ListByUser(gctx, sess.UserID, "active", overviewLimit)
		return err
	})
	g.Go(func() error {
		var err error
		archived, err = s.repo.Course.ListByUser(gctx, sess.UserID, "archived", overviewLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("查询课程列表失败", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, s.persistenceError(err)
	}

	result := &dto.CourseOverview{
		Total: dto.OverviewTotal{Active: active.Total, Archived: archived.Total},
		Empty: active.Total == 0 && archived.Total == 0,
	}
	result.ActiveSubstitutions, result.ActiveCourses = s.splitSubstitutions(active.Data, sess.UserID)
	result.ArchivedSubstitutions, result.ArchivedCourses = s.splitSubstitutions(archived.Data, sess.UserID)
	if result.Empty {
		result.IsStudent = sess.IsStudentOnly()
	}
	return result, nil
}

// splitSubstitutions 拆分出当前用户代课的课程
func (s *courseService) splitSubstitutions(courses []model.Course, userID string) (substitutions, others []dto.CourseCard) {
	substitutions = []dto.CourseCard{}
	others = []dto.CourseCard{}
	for i := range courses {
		card := s.toCard(&courses[i])
		if slices.Contains(courses[i].SubstitutionIDs, userID) {
			substitutions = append(substitutions, card)
		} else {
			others = append(others, card)
		}
	}
	return substitutions, others
}

// ────────────────────── Forms ──────────────────────

func (s *courseService) NewForm(_ context.Context, sess *session.Session) *dto.CourseFormView {
	data := dto.CourseFormData{
		TeacherIDs:      []string{},
		ClassIDs:        []string{},
		UserIDs:         []string{},
		SubstitutionIDs: []string{},
		Times:           []dto.CourseTimeView{},
	}
	if sess != nil && sess.UserID != "" {
		data.TeacherIDs = []string{sess.UserID}
	}
	return s.formView(s.labels.createTitle, s.basePath()+"/", "post", s.labels.createLabel, data)
}

func (s *courseService) EditForm(ctx context.Context, id string) (*dto.CourseFormView, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.formView(s.labels.editTitle, s.detailPath(id), "patch", "Änderungen speichern", s.toFormData(course)), nil
}

func (s *courseService) CopyForm(ctx context.Context, id string) (*dto.CourseFormView, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	data := s.toFormData(course)
	data.Name += copyNameSuffix
	return s.formView(s.labels.copyTitle, s.basePath()+"/copy/"+id, "post", s.labels.copyTitle, data), nil
}

func (s *courseService) formView(title, action, method, submit string, data dto.CourseFormData) *dto.CourseFormView {
	return &dto.CourseFormView{
		Title:       title,
		Action:      action,
		Method:      method,
		SubmitLabel: submit,
		CloseLabel:  "Abbrechen",
		Course:      data,
		Colors:      append([]string(nil), courseColors...),
		Weekdays:    schedule.WeekdayLabels(),
	}
}

// ────────────────────── Detail ──────────────────────

func (s *courseService) Detail(ctx context.Context, id string) (*dto.CourseDetail, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &dto.CourseDetail{
		ID:          course.ID,
		Title:       course.Name,
		Description: course.Description,
		Color:       course.Color,
		StartDate:   schedule.FormatDate(course.StartDate, s.loc),
		UntilDate:   schedule.FormatDate(course.UntilDate, s.loc),
		Times:       s.toTimeViews(course.Times),
		Breadcrumb: []dto.Breadcrumb{
			{Title: s.labels.overview, URL: s.basePath()},
			{Title: course.Name, URL: s.detailPath(course.ID)},
		},
		EditURL: s.detailPath(course.ID) + "/edit",
	}
	if next, ok := schedule.NextOccurrence(course, s.now(), s.loc); ok {
		detail.NextEvent = next.In(s.loc).Format(time.RFC3339)
	}
	return detail, nil
}

// ────────────────────── Create ──────────────────────

func (s *courseService) Create(ctx context.Context, form *dto.CourseForm) (*dto.SaveResponse, error) {
	course, err := s.decodeForm(form)
	if err != nil {
		return nil, err
	}
	if sess, ok := session.FromContext(ctx); ok && course.SchoolID == "" {
		course.SchoolID = sess.SchoolID
	}
	clearEventIDs(course.Times)

	plan := s.reconciler.PlanCreate(course)

	saved, err := s.repo.Course.Create(ctx, course)
	if err != nil {
		s.logger.Error("创建课程失败", zap.String("name", course.Name), zap.Error(err))
		return nil, s.persistenceError(err)
	}

	outcome := s.reconciler.Apply(ctx, saved, plan)
	return &dto.SaveResponse{
		ID:       saved.ID,
		Redirect: s.basePath(),
		Calendar: toCalendarResult(outcome),
	}, nil
}

// ────────────────────── Update ──────────────────────

func (s *courseService) Update(ctx context.Context, id string, form *dto.CourseForm) (*dto.SaveResponse, error) {
	course, err := s.decodeForm(form)
	if err != nil {
		return nil, err
	}

	// course.Times 携带表单回传的 EventID；计划阶段按差异改写后随本次更新一起保存
	plan := s.reconciler.PlanUpdate(ctx, id, course)

	saved, err := s.repo.Course.Update(ctx, id, course)
	if err != nil {
		s.logger.Error("更新课程失败", zap.String("id", id), zap.Error(err))
		return nil, s.persistenceError(err)
	}
	if saved.ID == "" {
		saved.ID = id
	}

	outcome := s.reconciler.Apply(ctx, saved, plan)
	return &dto.SaveResponse{
		ID:       id,
		Redirect: s.detailPath(id),
		Calendar: toCalendarResult(outcome),
	}, nil
}

// ────────────────────── Copy ──────────────────────

// Copy 复制课程，不同步日历
func (s *courseService) Copy(ctx context.Context, sourceID string, form *dto.CourseForm) (*dto.SaveResponse, error) {
	course, err := s.decodeForm(form)
	if err != nil {
		return nil, err
	}
	clearEventIDs(course.Times)

	created, err := s.repo.Course.Copy(ctx, &model.CourseCopyRequest{SourceID: sourceID, Course: *course})
	if err != nil {
		s.logger.Error("复制课程失败", zap.String("source_id", sourceID), zap.Error(err))
		return nil, s.persistenceError(err)
	}

	return &dto.SaveResponse{
		ID:       created.ID,
		Redirect: s.detailPath(created.ID),
	}, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 先删除课程，再删除其关联的日历事件
func (s *courseService) Delete(ctx context.Context, id string) (*dto.SaveResponse, error) {
	plan := s.reconciler.PlanDelete(ctx, id)

	if err := s.repo.Course.Delete(ctx, id); err != nil {
		s.logger.Error("删除课程失败", zap.String("id", id), zap.Error(err))
		return nil, s.persistenceError(err)
	}

	outcome := s.reconciler.Apply(ctx, nil, plan)
	return &dto.SaveResponse{
		ID:       id,
		Redirect: s.basePath(),
		Calendar: toCalendarResult(outcome),
	}, nil
}

// ────────────────────── Members ──────────────────────

func (s *courseService) AddMembers(ctx context.Context, id string, userIDs []string) error {
	course, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	members := append([]string{}, course.UserIDs...)
	for _, uid := range userIDs {
		if uid != "" && !slices.Contains(members, uid) {
			members = append(members, uid)
		}
	}

	if err := s.repo.Course.UpdateMembers(ctx, id, members); err != nil {
		s.logger.Error("添加成员失败", zap.String("id", id), zap.Error(err))
		return s.persistenceError(err)
	}
	return nil
}

func (s *courseService) RemoveMembers(ctx context.Context, id string, userIDs []string) error {
	course, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	members := make([]string, 0, len(course.UserIDs))
	for _, uid := range course.UserIDs {
		if !slices.Contains(userIDs, uid) {
			members = append(members, uid)
		}
	}

	if err := s.repo.Course.UpdateMembers(ctx, id, members); err != nil {
		s.logger.Error("移除成员失败", zap.String("id", id), zap.Error(err))
		return s.persistenceError(err)
	}
	return nil
}

// ────────────────────── Sync logs ──────────────────────

func (s *courseService) ListSyncLogs(ctx context.Context, id string, limit int) ([]dto.SyncLogResponse, error) {
	logs, err := s.repo.SyncLog.ListByCourse(ctx, id, limit)
	if err != nil {
		s.logger.Error("查询同步记录失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SyncLogResponse, 0, len(logs))
	for _, l := range logs {
		item := dto.SyncLogResponse{
			ID:        l.SyncLogID,
			Action:    l.Action,
			Status:    l.Status,
			Created:   l.Created,
			Deleted:   l.Deleted,
			Kept:      l.Kept,
			RequestID: l.RequestID,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		}
		if l.Cause != nil {
			item.Cause = *l.Cause
		}
		result = append(result, item)
	}
	return result, nil
}

// ────────────────────── Share ──────────────────────

const shareTokenUnused = "ShareToken is not in use."

func (s *courseService) Share(ctx context.Context, id string) (*dto.ShareResponse, error) {
	share, err := s.repo.Course.GetShare(ctx, id)
	if err != nil {
		s.logger.Error("获取分享码失败", zap.String("id", id), zap.Error(err))
		return nil, s.persistenceError(err)
	}
	return &dto.ShareResponse{ID: id, ShareToken: share.ShareToken}, nil
}

// LookupShare 分享码无效时返回 status=error，不作为错误
func (s *courseService) LookupShare(ctx context.Context, token string) (*dto.ShareLookupResponse, error) {
	name, err := s.repo.Course.LookupShare(ctx, token)
	if err != nil {
		if pkgerrors.IsClientError(err) {
			return &dto.ShareLookupResponse{Msg: shareTokenUnused, Status: "error"}, nil
		}
		s.logger.Error("查询分享码失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCoursePersistence, err)
	}
	return &dto.ShareLookupResponse{Msg: name, Status: "success"}, nil
}

// Import 通过分享码导入课程副本，不同步日历
func (s *courseService) Import(ctx context.Context, req *dto.ImportRequest) (*dto.SaveResponse, error) {
	created, err := s.repo.Course.ImportShared(ctx, &model.CourseImportRequest{
		ShareToken: req.ShareToken,
		CourseName: req.Name,
	})
	if err != nil {
		if pkgerrors.IsClientError(err) {
			return nil, ErrShareNotFound
		}
		s.logger.Error("导入课程失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCoursePersistence, err)
	}

	// 副本不与原课程共用日历事件
	if slices.ContainsFunc(created.Times, func(t model.CourseTime) bool { return t.EventID != "" }) {
		clearEventIDs(created.Times)
		if err := s.repo.Course.UpdateTimes(ctx, created.ID, created.Times); err != nil {
			s.logger.Warn("清除导入课程的事件关联失败", zap.String("id", created.ID), zap.Error(err))
		}
	}

	return &dto.SaveResponse{
		ID:       created.ID,
		Redirect: s.detailPath(created.ID) + "/edit",
	}, nil
}

// ────────────────────── Join ──────────────────────

// Join 学生通过邀请链接加入课程，结果同时以提示消息告知用户
func (s *courseService) Join(ctx context.Context, id, link string) (*dto.SaveResponse, error) {
	sess, ok := session.FromContext(ctx)
	if !ok || !sess.HasRole("student") {
		s.pushNotice(ctx, model.NoticeDanger, "Sie sind kein Nutzer der Rolle 'Schüler'.")
		return nil, ErrNotStudent
	}

	course, err := s.repo.Course.GetByLink(ctx, id, link)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		}
		return nil, s.persistenceError(err)
	}

	if slices.Contains(course.UserIDs, sess.UserID) {
		s.pushNotice(ctx, model.NoticeDanger, fmt.Sprintf("Sie sind bereits Teilnehmer des Kurses/Fachs %s.", course.Name))
		return nil, ErrAlreadyMember
	}

	members := append(append([]string{}, course.UserIDs...), sess.UserID)
	if err := s.repo.Course.UpdateMembersByLink(ctx, id, link, members); err != nil {
		s.logger.Error("加入课程失败", zap.String("id", id), zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, s.persistenceError(err)
	}

	s.pushNotice(ctx, model.NoticeSuccess, fmt.Sprintf("Sie wurden erfolgreich beim Kurs/Fach %s hinzugefügt", course.Name))
	return &dto.SaveResponse{ID: id, Redirect: s.detailPath(id)}, nil
}

// ── 内部辅助方法 ──

func (s *courseService) pushNotice(ctx context.Context, noticeType, message string) {
	if s.notice == nil {
		return
	}
	if err := s.notice.Push(ctx, noticeType, message, ""); err != nil {
		s.logger.Warn("投递提示消息失败", zap.Error(err))
	}
}

func (s *courseService) get(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, s.persistenceError(err)
	}
	return course, nil
}

func (s *courseService) persistenceError(err error) error {
	if pkgerrors.IsNotFound(err) {
		return ErrCourseNotFound
	}
	return fmt.Errorf("%w: %w", ErrCoursePersistence, err)
}

// decodeForm 表单 → 存储表示
// 时间与星期在持久化之前校验；日期无法解析时省略，由后端保持原值
func (s *courseService) decodeForm(form *dto.CourseForm) (*model.Course, error) {
	times, err := schedule.Normalize(form.Times)
	if err != nil {
		return nil, err
	}

	course := &model.Course{
		Name:            form.Name,
		Description:     form.Description,
		Color:           form.Color,
		TeacherIDs:      form.TeacherIDs,
		ClassIDs:        orEmpty(form.ClassIDs),
		UserIDs:         orEmpty(form.UserIDs),
		SubstitutionIDs: orEmpty(form.SubstitutionIDs),
		Times:           times,
	}
	if d, ok := schedule.ParseDate(form.StartDate, s.loc); ok {
		course.StartDate = &d
	}
	if d, ok := schedule.ParseDate(form.UntilDate, s.loc); ok {
		course.UntilDate = &d
	}
	if err := schedule.ValidateRange(course.StartDate, course.UntilDate); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *courseService) toCard(c *model.Course) dto.CourseCard {
	lines := make([]string, 0, len(c.Times))
	for _, t := range c.Times {
		lines = append(lines, schedule.DescribeSlot(t))
	}
	return dto.CourseCard{
		ID:             c.ID,
		URL:            s.detailPath(c.ID),
		Title:          c.Name,
		Content:        excerpt(c.Description, excerptLength),
		Background:     c.Color,
		MemberAmount:   len(c.UserIDs),
		SecondaryTitle: lines,
	}
}

func (s *courseService) toFormData(c *model.Course) dto.CourseFormData {
	return dto.CourseFormData{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Color:           c.Color,
		TeacherIDs:      orEmpty(c.TeacherIDs),
		ClassIDs:        orEmpty(c.ClassIDs),
		UserIDs:         orEmpty(c.UserIDs),
		SubstitutionIDs: orEmpty(c.SubstitutionIDs),
		StartDate:       schedule.FormatDate(c.StartDate, s.loc),
		UntilDate:       schedule.FormatDate(c.UntilDate, s.loc),
		Times:           s.toTimeViews(c.Times),
	}
}

func (s *courseService) toTimeViews(times []model.CourseTime) []dto.CourseTimeView {
	views := make([]dto.CourseTimeView, 0, len(times))
	for i, t := range times {
		clock, minutes := schedule.EncodeTime(t.StartTime, t.Duration)
		label, _ := schedule.WeekdayLabel(t.Weekday)
		views = append(views, dto.CourseTimeView{
			ID:           t.ID,
			Count:        i,
			Weekday:      t.Weekday,
			WeekdayLabel: label,
			StartTime:    clock,
			Duration:     minutes,
			Room:         t.Room,
			EventID:      t.EventID,
		})
	}
	return views
}

func toCalendarResult(o ReconcileOutcome) *dto.CalendarResult {
	res := &dto.CalendarResult{
		Status:  string(o.Status),
		Created: o.Created,
		Deleted: o.Deleted,
		Kept:    o.Kept,
	}
	if o.Degraded() {
		res.Warning = o.Warning
	}
	return res
}

// clearEventIDs 新课程不沿用任何事件
func clearEventIDs(times []model.CourseTime) {
	for i := range times {
		times[i].EventID = ""
	}
}

// excerpt 按字符截断
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
