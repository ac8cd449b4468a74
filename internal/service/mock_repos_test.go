package service

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"schoolweb/internal/model"
	"schoolweb/internal/schedule"
	pkgerrors "schoolweb/pkg/errors"
)

func upstream(status int) error {
	return &pkgerrors.UpstreamError{Method: http.MethodGet, Path: "/mock", StatusCode: status}
}

func cloneCourse(c *model.Course) *model.Course {
	cp := *c
	cp.Times = cloneTimes(c.Times)
	cp.UserIDs = append([]string(nil), c.UserIDs...)
	return &cp
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	mu               sync.Mutex
	seq              int
	courses          map[string]*model.Course
	pages            map[string]*model.CoursePage // filter → page
	getErr           error
	createErr        error
	updateErr        error
	updateTimesCalls int
	reverseTimes     bool // 模拟后端返回的时间段顺序与提交不同
	lastUpdate       *model.Course
	lastCopy         *model.CourseCopyRequest
	lastLink         string
	shares           map[string]string // shareToken → 源课程 ID
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses: make(map[string]*model.Course),
		pages:   make(map[string]*model.CoursePage),
		shares:  make(map[string]string),
	}
}

func (m *mockCourseRepo) assignSlotIDs(times []model.CourseTime) {
	for i := range times {
		if times[i].ID == "" {
			m.seq++
			times[i].ID = fmt.Sprintf("t-%d", m.seq)
		}
	}
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.courses[id]
	if !ok {
		return nil, upstream(http.StatusNotFound)
	}
	return cloneCourse(c), nil
}

func (m *mockCourseRepo) ListByUser(_ context.Context, _ string, filter string, _ int) (*model.CoursePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[filter]; ok {
		return p, nil
	}
	return &model.CoursePage{Data: []model.Course{}}, nil
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	c := cloneCourse(course)
	c.ID = fmt.Sprintf("course-%d", m.seq)
	m.assignSlotIDs(c.Times)
	m.courses[c.ID] = c
	return cloneCourse(c), nil
}

// Update 模拟 PATCH：未提交的字段保持原值
func (m *mockCourseRepo) Update(_ context.Context, id string, course *model.Course) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	c, ok := m.courses[id]
	if !ok {
		return nil, upstream(http.StatusNotFound)
	}
	m.lastUpdate = cloneCourse(course)

	c.Name = course.Name
	c.Description = course.Description
	c.Color = course.Color
	if len(course.TeacherIDs) > 0 {
		c.TeacherIDs = course.TeacherIDs
	}
	c.ClassIDs = course.ClassIDs
	c.UserIDs = course.UserIDs
	c.SubstitutionIDs = course.SubstitutionIDs
	if course.StartDate != nil {
		c.StartDate = course.StartDate
	}
	if course.UntilDate != nil {
		c.UntilDate = course.UntilDate
	}
	c.Times = cloneTimes(course.Times)
	m.assignSlotIDs(c.Times)
	if m.reverseTimes {
		slices.Reverse(c.Times)
	}
	return cloneCourse(c), nil
}

func (m *mockCourseRepo) UpdateTimes(_ context.Context, id string, times []model.CourseTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateTimesCalls++
	c, ok := m.courses[id]
	if !ok {
		return upstream(http.StatusNotFound)
	}
	c.Times = cloneTimes(times)
	return nil
}

func (m *mockCourseRepo) UpdateMembers(_ context.Context, id string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return upstream(http.StatusNotFound)
	}
	c.UserIDs = append([]string{}, userIDs...)
	return nil
}

func (m *mockCourseRepo) Copy(_ context.Context, req *model.CourseCopyRequest) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[req.SourceID]; !ok {
		return nil, upstream(http.StatusNotFound)
	}
	m.lastCopy = req
	m.seq++
	c := cloneCourse(&req.Course)
	c.ID = fmt.Sprintf("course-%d", m.seq)
	m.courses[c.ID] = c
	return cloneCourse(c), nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return upstream(http.StatusNotFound)
	}
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) GetByLink(ctx context.Context, id, link string) (*model.Course, error) {
	m.mu.Lock()
	m.lastLink = link
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *mockCourseRepo) UpdateMembersByLink(ctx context.Context, id, link string, userIDs []string) error {
	m.mu.Lock()
	m.lastLink = link
	m.mu.Unlock()
	return m.UpdateMembers(ctx, id, userIDs)
}

func (m *mockCourseRepo) GetShare(_ context.Context, id string) (*model.CourseShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return nil, upstream(http.StatusNotFound)
	}
	token := "share-" + id
	m.shares[token] = id
	return &model.CourseShare{ID: id, ShareToken: token}, nil
}

func (m *mockCourseRepo) LookupShare(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.courses[m.shares[token]]
	if !ok {
		return "", upstream(http.StatusNotFound)
	}
	return src.Name, nil
}

// ImportShared 模拟后端按分享码复制课程（时间段原样复制，含 EventID）
func (m *mockCourseRepo) ImportShared(_ context.Context, req *model.CourseImportRequest) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.courses[m.shares[req.ShareToken]]
	if !ok {
		return nil, upstream(http.StatusNotFound)
	}
	m.seq++
	c := cloneCourse(src)
	c.ID = fmt.Sprintf("course-%d", m.seq)
	if req.CourseName != "" {
		c.Name = req.CourseName
	}
	m.courses[c.ID] = c
	return cloneCourse(c), nil
}

func (m *mockCourseRepo) stored(id string) *model.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id]
}

// ── Mock CalendarRepository ──

type mockCalendarRepo struct {
	mu         sync.Mutex
	seq        int
	events     map[string]*model.CalendarEventRequest
	creates    int
	deletes    int
	failCreate func(req *model.CalendarEventRequest) bool
	failDelete map[string]bool
}

func newMockCalendarRepo() *mockCalendarRepo {
	return &mockCalendarRepo{
		events:     make(map[string]*model.CalendarEventRequest),
		failDelete: make(map[string]bool),
	}
}

func (m *mockCalendarRepo) CreateEvent(_ context.Context, req *model.CalendarEventRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failCreate != nil && m.failCreate(req) {
		return "", fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, upstream(http.StatusServiceUnavailable))
	}
	m.seq++
	id := fmt.Sprintf("evt-%d", m.seq)
	m.events[id] = req
	return id, nil
}

func (m *mockCalendarRepo) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.failDelete[eventID] {
		return fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, upstream(http.StatusBadGateway))
	}
	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("%w: %w", schedule.ErrCalendarUnavailable, upstream(http.StatusNotFound))
	}
	delete(m.events, eventID)
	return nil
}

func (m *mockCalendarRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates + m.deletes
}

func (m *mockCalendarRepo) eventIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ── Mock SyncLogRepository ──

type mockSyncLogRepo struct {
	mu           sync.Mutex
	logs         []model.CalendarSyncLog
	deleteBefore time.Time
}

func newMockSyncLogRepo() *mockSyncLogRepo {
	return &mockSyncLogRepo{}
}

func (m *mockSyncLogRepo) Create(_ context.Context, log *model.CalendarSyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.SyncLogID = fmt.Sprintf("log-%d", len(m.logs)+1)
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockSyncLogRepo) ListByCourse(_ context.Context, courseID string, limit int) ([]model.CalendarSyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.CalendarSyncLog
	for i := len(m.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if m.logs[i].CourseID == courseID {
			result = append(result, m.logs[i])
		}
	}
	return result, nil
}

func (m *mockSyncLogRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteBefore = before
	kept := m.logs[:0]
	var n int64
	for _, l := range m.logs {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.logs = kept
	return n, nil
}

func (m *mockSyncLogRepo) last() model.CalendarSyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[len(m.logs)-1]
}
