package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
)

// ── iCalendar 订阅 ──────────────────────────────────────────
//
// 将筛选后的日程导出为 RFC 5545 日历：
//   - 无结束时间的日程按 1 小时计
//   - UID 使用记录 ID，重复导入同一日历时客户端会覆盖而不是新增
// ─────────────────────────────────────────────────────────────

const defaultEventDuration = time.Hour

// CalendarService 日历导出业务接口
type CalendarService interface {
	ExportICS(ctx context.Context, filter *dto.ScheduleFilter) ([]byte, string, error)
}

type calendarService struct {
	repo      *repository.Repository
	schedules ScheduleService
	logger    *zap.Logger
	now       func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, schedules ScheduleService, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, schedules: schedules, logger: logger, now: time.Now}
}

func (s *calendarService) ExportICS(ctx context.Context, filter *dto.ScheduleFilter) ([]byte, string, error) {
	records, err := s.schedules.ListRange(ctx, filter.From, filter.To)
	if err != nil {
		return nil, "", err
	}
	records = FilterRecords(records, filter.ConsultantID, filter.TypeCode)

	codes, err := s.repo.CommonCode.List(ctx)
	if err != nil {
		s.logger.Error("加载公共代码失败", zap.Error(err))
		return nil, "", err
	}
	names := make(map[string]string, len(codes))
	for _, cc := range codes {
		names[cc.Code] = cc.Name
	}

	cal := BuildCalendar(records, names, s.now())
	filename := fmt.Sprintf("consulting_%s_%s.ics", filter.From, filter.To)
	return []byte(cal.Serialize()), filename, nil
}

// BuildCalendar 组装日历；typeNames 为类型代码到显示名的映射
func BuildCalendar(records []model.ScheduleRecord, typeNames map[string]string, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//ewh-consulting//schedule//KO")
	cal.SetXWRCalName("컨설팅 일정")

	for _, rec := range records {
		event := cal.AddEvent(rec.ID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(rec.Date)
		end := rec.Date.Add(defaultEventDuration)
		if rec.EndDate != nil && rec.EndDate.After(rec.Date) {
			end = *rec.EndDate
		}
		event.SetEndAt(end)
		event.SetSummary(eventSummary(rec, typeNames))
		if rec.Location != "" {
			event.SetLocation(rec.Location)
		}
		if rec.Memo != "" {
			event.SetDescription(rec.Memo)
		}
	}
	return cal
}

func eventSummary(rec model.ScheduleRecord, typeNames map[string]string) string {
	typeName := rec.TypeCode
	if n, ok := typeNames[rec.TypeCode]; ok && n != "" {
		typeName = n
	}
	who := rec.ConsultantName
	if who == "" {
		who = strings.TrimPrefix(rec.ConsultantID, "unknown_")
	}
	if who == "" {
		return typeName
	}
	return fmt.Sprintf("%s (%s)", typeName, who)
}
