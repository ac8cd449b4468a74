package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"schoolweb/config"
	"schoolweb/internal/model"
	"schoolweb/internal/repository"
	"schoolweb/internal/schedule"
	pkgerrors "schoolweb/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoTimes      = errors.New("课程没有时间段")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const icsLocalLayout = "20060102T150405"

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportService 导出业务接口
//   - ICS：每个时间段一个每周重复事件，可导入任意日历客户端
//   - Excel：时间段一览表
type ExportService interface {
	ExportICS(ctx context.Context, courseID string) ([]byte, string, error)
	ExportTimesXLSX(ctx context.Context, courseID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.CalendarConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, loc: cfg.Location(), logger: logger, now: time.Now}
}

func (s *exportService) load(ctx context.Context, courseID string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", courseID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCoursePersistence, err)
	}
	if len(course.Times) == 0 {
		return nil, ErrExportNoTimes
	}
	return course, nil
}

// ════════════════════════════════════════════
// ExportICS 导出 iCalendar
// ════════════════════════════════════════════
//
// 没有开始日期的课程从今天起算；UID 由课程 ID 与时间段序号派生，重复导出保持不变

func (s *exportService) ExportICS(ctx context.Context, courseID string) ([]byte, string, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	anchor := now
	if course.StartDate != nil {
		anchor = *course.StartDate
	}
	tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{s.loc.String()}}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//schoolweb//Kurszeiten//DE")
	cal.SetXWRCalName(course.Name)
	cal.SetXWRTimezone(s.loc.String())

	for i, slot := range course.Times {
		start := schedule.AlignedOccurrence(anchor, slot, s.loc)
		end := start.Add(time.Duration(slot.Duration) * time.Millisecond)

		rule, err := schedule.RRuleText(slot, start, course.UntilDate, s.loc)
		if err != nil {
			s.logger.Warn("跳过无效时间段", zap.String("id", courseID), zap.Int("slot", i), zap.Error(err))
			continue
		}

		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", course.ID, i))).String()
		event := cal.AddEvent(uid)
		event.SetDtStampTime(now)
		event.SetProperty(ics.ComponentPropertyDtStart, start.In(s.loc).Format(icsLocalLayout), tzid)
		event.SetProperty(ics.ComponentPropertyDtEnd, end.In(s.loc).Format(icsLocalLayout), tzid)
		event.SetProperty(ics.ComponentPropertyRrule, rule)
		event.SetSummary(course.Name)
		if slot.Room != "" {
			event.SetLocation(slot.Room)
		}
		if course.Description != "" {
			event.SetDescription(course.Description)
		}
	}

	return []byte(cal.Serialize()), exportFilename(course, "ics"), nil
}

// ════════════════════════════════════════════
// ExportTimesXLSX 导出时间段 Excel
// ════════════════════════════════════════════
//
// | Nr. | Wochentag | Beginn | Ende | Dauer (Min.) | Raum |

func (s *exportService) ExportTimesXLSX(ctx context.Context, courseID string) (*bytes.Buffer, string, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Kurszeiten"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := course.Name
	if from := schedule.FormatDate(course.StartDate, s.loc); from != "" {
		title += fmt.Sprintf(" (%s - %s)", from, schedule.FormatDate(course.UntilDate, s.loc))
	}
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", "F1")

	// 表头
	headers := []string{"Nr.", "Wochentag", "Beginn", "Ende", "Dauer (Min.)", "Raum"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "F2", headerStyle)

	// 数据行
	for i, slot := range course.Times {
		row := i + 3
		label, _ := schedule.WeekdayLabel(slot.Weekday)
		begin, minutes := schedule.EncodeTime(slot.StartTime, slot.Duration)
		end, _ := schedule.EncodeTime(slot.StartTime+slot.Duration, 0)

		f.SetCellValue(sheetName, cell("A", row), i+1)
		f.SetCellValue(sheetName, cell("B", row), label)
		f.SetCellValue(sheetName, cell("C", row), begin)
		f.SetCellValue(sheetName, cell("D", row), end)
		f.SetCellValue(sheetName, cell("E", row), minutes)
		f.SetCellValue(sheetName, cell("F", row), slot.Room)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, exportFilename(course, "xlsx"), nil
}

// ── 辅助函数 ──

func exportFilename(course *model.Course, ext string) string {
	name := unsafeFilename.ReplaceAllString(course.Name, "_")
	if name == "" || name == "_" {
		name = course.ID
	}
	return fmt.Sprintf("%s.%s", name, ext)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
