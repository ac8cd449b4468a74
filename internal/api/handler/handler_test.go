package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"schoolweb/internal/dto"
	"schoolweb/internal/model"
	"schoolweb/internal/schedule"
	"schoolweb/internal/service"
	"schoolweb/pkg/response"
	"schoolweb/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock CourseService ──

type mockCourseService struct {
	overview    *dto.CourseOverview
	overviewErr error
	form        *dto.CourseFormView
	formErr     error
	detail      *dto.CourseDetail
	detailErr   error
	save        *dto.SaveResponse
	saveErr     error
	membersErr  error
	logs        []dto.SyncLogResponse
	logsErr     error
	share       *dto.ShareResponse
	lookup      *dto.ShareLookupResponse
	shareErr    error

	lastForm    *dto.CourseForm
	lastID      string
	lastMembers []string
	lastLimit   int
	lastLink    string
	lastImport  *dto.ImportRequest
}

func (m *mockCourseService) Overview(_ context.Context, _ *session.Session) (*dto.CourseOverview, error) {
	return m.overview, m.overviewErr
}
func (m *mockCourseService) NewForm(_ context.Context, sess *session.Session) *dto.CourseFormView {
	return &dto.CourseFormView{Method: "post", Course: dto.CourseFormData{TeacherIDs: []string{sess.UserID}}}
}
func (m *mockCourseService) EditForm(_ context.Context, id string) (*dto.CourseFormView, error) {
	m.lastID = id
	return m.form, m.formErr
}
func (m *mockCourseService) CopyForm(_ context.Context, id string) (*dto.CourseFormView, error) {
	m.lastID = id
	return m.form, m.formErr
}
func (m *mockCourseService) Detail(_ context.Context, id string) (*dto.CourseDetail, error) {
	m.lastID = id
	return m.detail, m.detailErr
}
func (m *mockCourseService) Create(_ context.Context, form *dto.CourseForm) (*dto.SaveResponse, error) {
	m.lastForm = form
	return m.save, m.saveErr
}
func (m *mockCourseService) Update(_ context.Context, id string, form *dto.CourseForm) (*dto.SaveResponse, error) {
	m.lastID, m.lastForm = id, form
	return m.save, m.saveErr
}
func (m *mockCourseService) Copy(_ context.Context, id string, form *dto.CourseForm) (*dto.SaveResponse, error) {
	m.lastID, m.lastForm = id, form
	return m.save, m.saveErr
}
func (m *mockCourseService) Delete(_ context.Context, id string) (*dto.SaveResponse, error) {
	m.lastID = id
	return m.save, m.saveErr
}
func (m *mockCourseService) AddMembers(_ context.Context, id string, userIDs []string) error {
	m.lastID, m.lastMembers = id, userIDs
	return m.membersErr
}
func (m *mockCourseService) RemoveMembers(_ context.Context, id string, userIDs []string) error {
	m.lastID, m.lastMembers = id, userIDs
	return m.membersErr
}
func (m *mockCourseService) ListSyncLogs(_ context.Context, id string, limit int) ([]dto.SyncLogResponse, error) {
	m.lastID, m.lastLimit = id, limit
	return m.logs, m.logsErr
}

func (m *mockCourseService) Share(_ context.Context, id string) (*dto.ShareResponse, error) {
	m.lastID = id
	return m.share, m.shareErr
}
func (m *mockCourseService) LookupShare(_ context.Context, token string) (*dto.ShareLookupResponse, error) {
	m.lastID = token
	return m.lookup, m.shareErr
}
func (m *mockCourseService) Import(_ context.Context, req *dto.ImportRequest) (*dto.SaveResponse, error) {
	m.lastImport = req
	return m.save, m.saveErr
}
func (m *mockCourseService) Join(_ context.Context, id, link string) (*dto.SaveResponse, error) {
	m.lastID, m.lastLink = id, link
	return m.save, m.saveErr
}

// ── Mock ExportService ──

type mockExportService struct {
	ics      []byte
	xlsx     *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportICS(_ context.Context, _ string) ([]byte, string, error) {
	return m.ics, m.filename, m.err
}
func (m *mockExportService) ExportTimesXLSX(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.xlsx, m.filename, m.err
}

// ── Mock NoticeService ──

type mockNoticeService struct {
	notices []model.Notice
	err     error
}

func (m *mockNoticeService) Push(_ context.Context, _, _, _ string) error { return nil }
func (m *mockNoticeService) Warn(_ context.Context, _, _ string) {}
func (m *mockNoticeService) Drain(_ context.Context, _ string) ([]model.Notice, error) {
	return m.notices, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

// withAuth 模拟 JWTAuth 写入的身份信息
func withAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("roles", []string{"teacher"})
	c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), &session.Session{
		UserID:    "test-user-id",
		Roles:     []string{"teacher"},
		RequestID: "req-test",
	}))
	c.Next()
}

func courseRouter(h *CourseHandler, e *ExportHandler) *gin.Engine {
	r := gin.New()
	g := r.Group("/courses", withAuth)
	g.GET("", h.Overview)
	g.GET("/new", h.NewForm)
	g.POST("", h.CreateCourse)
	g.POST("/copy/:id", h.CopyCourse)
	g.GET("/:id", h.GetCourse)
	g.PATCH("/:id", h.UpdateCourse)
	g.DELETE("/:id", h.DeleteCourse)
	g.GET("/:id/edit", h.EditForm)
	g.GET("/:id/sync-logs", h.ListSyncLogs)
	g.GET("/:id/share", h.Share)
	g.GET("/share/:token", h.LookupShare)
	g.POST("/import", h.Import)
	g.POST("/:id/join", h.Join)
	g.POST("/:id/members", h.AddMembers)
	g.DELETE("/:id/members", h.RemoveMembers)
	if e != nil {
		g.GET("/:id/export/ics", e.ExportICS)
		g.GET("/:id/export/times", e.ExportTimes)
	}
	return r
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func do(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func validForm() dto.CourseForm {
	return dto.CourseForm{
		Name:      "Mathe",
		Color:     "#ACACAC",
		StartDate: "02.09.2024",
		Times:     []schedule.RawSlot{{Weekday: "Mittwoch", StartTime: "14:30", Duration: 45}},
	}
}

// ═══════════════════════════════════════════════════════════
// CourseHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCourseHandler_Create_Success(t *testing.T) {
	mock := &mockCourseService{save: &dto.SaveResponse{
		ID: "c1", Redirect: "/courses",
		Calendar: &dto.CalendarResult{Status: "synced", Created: 1},
	}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodPost, "/courses", jsonBody(validForm()))

	if w.Code != http.StatusCreated {
		t.Fatalf("期望 201，实际 %d: %s", w.Code, w.Body.String())
	}
	if mock.lastForm == nil || mock.lastForm.Times[0].StartTime != "14:30" {
		t.Errorf("表单未正确绑定: %+v", mock.lastForm)
	}
	if !strings.Contains(w.Body.String(), `"_id":"c1"`) {
		t.Errorf("响应应包含课程 ID: %s", w.Body.String())
	}
}

func TestCourseHandler_Create_DegradedStillSucceeds(t *testing.T) {
	mock := &mockCourseService{save: &dto.SaveResponse{
		ID: "c1",
		Calendar: &dto.CalendarResult{Status: "degraded", Warning: "Kurszeiten evtl. nicht gespeichert"},
	}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodPost, "/courses", jsonBody(validForm()))

	if w.Code != http.StatusCreated {
		t.Fatalf("日历降级不应影响响应状态，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"degraded"`) || !strings.Contains(w.Body.String(), "warning") {
		t.Errorf("响应应携带降级提示: %s", w.Body.String())
	}
}

func TestCourseHandler_Create_BindErrors(t *testing.T) {
	r := courseRouter(NewCourseHandler(&mockCourseService{}), nil)

	tests := []struct {
		name string
		form func(f *dto.CourseForm)
	}{
		{"缺少名称", func(f *dto.CourseForm) { f.Name = "" }},
		{"颜色格式错误", func(f *dto.CourseForm) { f.Color = "blau" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.form(&form)
			w := do(r, http.MethodPost, "/courses", jsonBody(form))
			if w.Code != http.StatusBadRequest || parseResponse(w).Code != 10001 {
				t.Errorf("期望 400/10001，实际 %d/%d", w.Code, parseResponse(w).Code)
			}
		})
	}
}

func TestCourseHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"时间格式", fmt.Errorf("第 1 个时间段: %w", schedule.ErrInvalidTimeFormat), http.StatusBadRequest, 17001},
		{"星期", schedule.ErrUnknownWeekday, http.StatusBadRequest, 17002},
		{"时长", schedule.ErrInvalidDuration, http.StatusBadRequest, 17003},
		{"日期范围", schedule.ErrInvalidDateRange, http.StatusBadRequest, 17004},
		{"不存在", service.ErrCourseNotFound, http.StatusNotFound, 17101},
		{"持久化失败", fmt.Errorf("%w: HTTP 500", service.ErrCoursePersistence), http.StatusBadGateway, 17201},
		{"未知错误", fmt.Errorf("boom"), http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := courseRouter(NewCourseHandler(&mockCourseService{saveErr: tt.err}), nil)
			w := do(r, http.MethodPatch, "/courses/c1", jsonBody(validForm()))

			if w.Code != tt.status {
				t.Errorf("期望 %d，实际 %d", tt.status, w.Code)
			}
			if got := parseResponse(w).Code; got != tt.code {
				t.Errorf("期望 code %d，实际 %d", tt.code, got)
			}
		})
	}
}

func TestCourseHandler_Update_PassesID(t *testing.T) {
	mock := &mockCourseService{save: &dto.SaveResponse{ID: "c7", Redirect: "/courses/c7"}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodPatch, "/courses/c7", jsonBody(validForm()))
	if w.Code != http.StatusOK || mock.lastID != "c7" {
		t.Errorf("期望 200 且 id=c7，实际 %d id=%s", w.Code, mock.lastID)
	}

	w = do(r, http.MethodPost, "/courses/copy/c7", jsonBody(validForm()))
	if w.Code != http.StatusCreated || mock.lastID != "c7" {
		t.Errorf("复制期望 201 且源 id=c7，实际 %d id=%s", w.Code, mock.lastID)
	}
}

func TestCourseHandler_Delete(t *testing.T) {
	mock := &mockCourseService{save: &dto.SaveResponse{ID: "c1", Redirect: "/courses"}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodDelete, "/courses/c1", nil)
	if w.Code != http.StatusOK || mock.lastID != "c1" {
		t.Errorf("期望 200 且 id=c1，实际 %d id=%s", w.Code, mock.lastID)
	}

	mock.saveErr = service.ErrCourseNotFound
	w = do(r, http.MethodDelete, "/courses/c1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际 %d", w.Code)
	}
}

func TestCourseHandler_Overview(t *testing.T) {
	mock := &mockCourseService{overview: &dto.CourseOverview{Empty: true, IsStudent: true}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodGet, "/courses", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"isStudent":true`) {
		t.Errorf("概览响应错误: %d %s", w.Code, w.Body.String())
	}
}

func TestCourseHandler_Overview_Unauthenticated(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{})
	r := gin.New()
	r.GET("/courses", h.Overview)

	w := do(r, http.MethodGet, "/courses", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestCourseHandler_NewFormAndDetail(t *testing.T) {
	mock := &mockCourseService{detail: &dto.CourseDetail{ID: "c1", NextEvent: "2024-09-04T14:30:00+02:00"}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodGet, "/courses/new", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "test-user-id") {
		t.Errorf("新建表单应预选当前用户: %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/courses/c1", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "nextEvent") {
		t.Errorf("详情响应错误: %s", w.Body.String())
	}

	mock.formErr = service.ErrCourseNotFound
	w = do(r, http.MethodGet, "/courses/c9/edit", nil)
	if w.Code != http.StatusNotFound || mock.lastID != "c9" {
		t.Errorf("期望 404，实际 %d", w.Code)
	}
}

func TestCourseHandler_Members(t *testing.T) {
	mock := &mockCourseService{}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodPost, "/courses/t1/members", jsonBody(dto.MembersRequest{UserIDs: []string{"u2", "u3"}}))
	if w.Code != http.StatusOK || len(mock.lastMembers) != 2 {
		t.Errorf("添加成员失败: %d %v", w.Code, mock.lastMembers)
	}

	w = do(r, http.MethodDelete, "/courses/t1/members", jsonBody(dto.MembersRequest{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("空成员列表期望 400，实际 %d", w.Code)
	}
}

func TestCourseHandler_ListSyncLogs(t *testing.T) {
	mock := &mockCourseService{logs: []dto.SyncLogResponse{{ID: "l1", Status: "degraded"}}}
	r := courseRouter(NewCourseHandler(mock), nil)

	w := do(r, http.MethodGet, "/courses/c1/sync-logs", nil)
	if w.Code != http.StatusOK || mock.lastLimit != 50 {
		t.Errorf("默认条数应为 50，实际 %d (status %d)", mock.lastLimit, w.Code)
	}

	w = do(r, http.MethodGet, "/courses/c1/sync-logs?limit=500", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("超出上限期望 400，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ICS(t *testing.T) {
	e := NewExportHandler(&mockExportService{ics: []byte("BEGIN:VCALENDAR"), filename: "Mathe.ics"})
	r := courseRouter(NewCourseHandler(&mockCourseService{}), e)

	w := do(r, http.MethodGet, "/courses/c1/export/ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("Content-Type 错误: %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "Mathe.ics") {
		t.Errorf("Content-Disposition 错误: %s", w.Header().Get("Content-Disposition"))
	}
	if w.Body.String() != "BEGIN:VCALENDAR" {
		t.Errorf("响应体错误: %s", w.Body.String())
	}
}

func TestExportHandler_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrCourseNotFound, http.StatusNotFound},
		{service.ErrExportNoTimes, http.StatusBadRequest},
		{service.ErrExportGenerateFail, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e := NewExportHandler(&mockExportService{err: tt.err})
		r := courseRouter(NewCourseHandler(&mockCourseService{}), e)

		w := do(r, http.MethodGet, "/courses/c1/export/times", nil)
		if w.Code != tt.status {
			t.Errorf("%v: 期望 %d，实际 %d", tt.err, tt.status, w.Code)
		}
	}
}

// ═══════════════════════════════════════════════════════════
// NoticeHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNoticeHandler_Drain(t *testing.T) {
	h := NewNoticeHandler(&mockNoticeService{notices: []model.Notice{{ID: "n1", Type: model.NoticeDanger, Message: "warn"}}})
	r := gin.New()
	r.GET("/notices", withAuth, h.DrainNotices)

	w := do(r, http.MethodGet, "/notices", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"type":"danger"`) {
		t.Errorf("提示消息响应错误: %d %s", w.Code, w.Body.String())
	}
}

func TestNoticeHandler_StoreUnavailable(t *testing.T) {
	h := NewNoticeHandler(&mockNoticeService{err: fmt.Errorf("redis down")})
	r := gin.New()
	r.GET("/notices", withAuth, h.DrainNotices)

	w := do(r, http.MethodGet, "/notices", nil)
	if w.Code != http.StatusServiceUnavailable || parseResponse(w).Code != 18001 {
		t.Errorf("期望 503/18001，实际 %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestCourseHandler_ShareAndImport(t *testing.T) {
	svc := &mockCourseService{
		share:  &dto.ShareResponse{ID: "c1", ShareToken: "tok-1"},
		lookup: &dto.ShareLookupResponse{Msg: "Mathe", Status: "success"},
		save:   &dto.SaveResponse{ID: "c9", Redirect: "/courses/c9/edit"},
	}
	r := courseRouter(NewCourseHandler(svc), nil)

	w := do(r, http.MethodGet, "/courses/c1/share", nil)
	if w.Code != http.StatusOK || svc.lastID != "c1" {
		t.Errorf("分享码接口错误: %d %s", w.Code, svc.lastID)
	}

	w = do(r, http.MethodGet, "/courses/share/tok-1", nil)
	if w.Code != http.StatusOK || svc.lastID != "tok-1" {
		t.Errorf("分享码查询接口错误: %d %s", w.Code, svc.lastID)
	}

	w = do(r, http.MethodPost, "/courses/import", jsonBody(map[string]string{"shareToken": "tok-1", "name": "Mathe 6b"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("期望 201，实际 %d", w.Code)
	}
	if svc.lastImport.ShareToken != "tok-1" || svc.lastImport.Name != "Mathe 6b" {
		t.Errorf("导入参数错误: %+v", svc.lastImport)
	}

	w = do(r, http.MethodPost, "/courses/import", jsonBody(map[string]string{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少分享码期望 400，实际 %d", w.Code)
	}

	svc.saveErr = service.ErrShareNotFound
	w = do(r, http.MethodPost, "/courses/import", jsonBody(map[string]string{"shareToken": "bad"}))
	if w.Code != http.StatusNotFound || parseResponse(w).Code != 17102 {
		t.Errorf("无效分享码期望 404/17102，实际 %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestCourseHandler_Join(t *testing.T) {
	svc := &mockCourseService{save: &dto.SaveResponse{ID: "c1", Redirect: "/courses/c1"}}
	r := courseRouter(NewCourseHandler(svc), nil)

	w := do(r, http.MethodPost, "/courses/c1/join?link=inv-1", nil)
	if w.Code != http.StatusOK || svc.lastID != "c1" || svc.lastLink != "inv-1" {
		t.Errorf("加入接口错误: %d %s %s", w.Code, svc.lastID, svc.lastLink)
	}

	tests := []struct {
		err      error
		wantHTTP int
		wantCode int
	}{
		{service.ErrNotStudent, http.StatusForbidden, 17103},
		{service.ErrAlreadyMember, http.StatusConflict, 17104},
		{service.ErrCourseNotFound, http.StatusNotFound, 17101},
	}
	for _, tt := range tests {
		svc.saveErr = tt.err
		w := do(r, http.MethodPost, "/courses/c1/join", nil)
		if w.Code != tt.wantHTTP || parseResponse(w).Code != tt.wantCode {
			t.Errorf("%v: 期望 %d/%d，实际 %d/%d", tt.err, tt.wantHTTP, tt.wantCode, w.Code, parseResponse(w).Code)
		}
	}
}
