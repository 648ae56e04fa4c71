package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoItems      = errors.New("所选区间内没有日程")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 报表导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置下载响应头后写入 Response
type ExportService interface {
	// ExportSchedules 日程明细表，每行按类型颜色着色
	ExportSchedules(ctx context.Context, filter *dto.ScheduleFilter) (*bytes.Buffer, string, error)
	// ExportFees 顾问 × 类型的次数与费用汇总
	ExportFees(ctx context.Context, filter *dto.ScheduleFilter) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo      *repository.Repository
	schedules ScheduleService
	logger    *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, schedules ScheduleService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, schedules: schedules, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSchedules — 日程明细
// ═══════════════════════════════════════════════════════════
//
// 表头: | 日期 | 时间 | 结束 | 类型 | 顾问 | 地点 | 备注 |

func (s *exportService) ExportSchedules(ctx context.Context, filter *dto.ScheduleFilter) (*bytes.Buffer, string, error) {
	records, codes, err := s.load(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "일정"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	widths := []float64{12, 8, 8, 18, 14, 18, 36}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(headerStyleDef())
	headers := []string{"날짜", "시간", "종료", "유형", "컨설턴트", "장소", "메모"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	// 同一颜色共用一个样式
	styleCache := make(map[string]int)
	rowStyle := func(typeCode string) int {
		color := ""
		if cc, ok := codes[typeCode]; ok {
			color = normalizeColor(cc.Color)
		}
		if id, ok := styleCache[color]; ok {
			return id
		}
		id, _ := f.NewStyle(bodyStyleDef(color))
		styleCache[color] = id
		return id
	}

	loc := s.schedules.Location()
	row := 2
	for _, rec := range records {
		start := rec.Date.In(loc)
		end := ""
		if rec.EndDate != nil {
			end = rec.EndDate.In(loc).Format("15:04")
		}
		typeName := rec.TypeCode
		if cc, ok := codes[rec.TypeCode]; ok {
			typeName = cc.Name
		}
		consultant := rec.ConsultantName
		if consultant == "" {
			consultant = rec.ConsultantID
		}

		values := []interface{}{
			start.Format("2006-01-02"), start.Format("15:04"), end,
			typeName, consultant, rec.Location, rec.Memo,
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(values)-1), row), rowStyle(rec.TypeCode))
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("schedules_%s_%s.xlsx", filter.From, filter.To), nil
}

// ═══════════════════════════════════════════════════════════
// ExportFees — 顾问费用汇总
// ═══════════════════════════════════════════════════════════
//
// 表头: | 顾问 | 类型 | 次数 | 单价 | 小计 |，末行为合计

type feeRow struct {
	consultant string
	typeCode   string
	typeName   string
	count      int
	unitFee    int64
}

func (s *exportService) ExportFees(ctx context.Context, filter *dto.ScheduleFilter) (*bytes.Buffer, string, error) {
	records, codes, err := s.load(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	rows := aggregateFees(records, codes)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "수당"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 16)
	f.SetColWidth(sheetName, "B", "B", 20)
	f.SetColWidth(sheetName, "C", "E", 12)

	headerStyle, _ := f.NewStyle(headerStyleDef())
	bodyStyle, _ := f.NewStyle(bodyStyleDef(""))
	moneyStyle, _ := f.NewStyle(moneyStyleDef(false))
	totalStyle, _ := f.NewStyle(moneyStyleDef(true))

	headers := []string{"컨설턴트", "유형", "건수", "단가", "금액"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", "E1", headerStyle)

	row := 2
	var total int64
	var totalCount int
	for _, r := range rows {
		subtotal := int64(r.count) * r.unitFee
		total += subtotal
		totalCount += r.count

		f.SetCellValue(sheetName, cell("A", row), r.consultant)
		f.SetCellValue(sheetName, cell("B", row), r.typeName)
		f.SetCellValue(sheetName, cell("C", row), r.count)
		f.SetCellValue(sheetName, cell("D", row), r.unitFee)
		f.SetCellValue(sheetName, cell("E", row), subtotal)
		f.SetCellStyle(sheetName, cell("A", row), cell("C", row), bodyStyle)
		f.SetCellStyle(sheetName, cell("D", row), cell("E", row), moneyStyle)
		row++
	}

	f.SetCellValue(sheetName, cell("A", row), "합계")
	f.SetCellValue(sheetName, cell("C", row), totalCount)
	f.SetCellValue(sheetName, cell("E", row), total)
	f.SetCellStyle(sheetName, cell("A", row), cell("E", row), totalStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("fees_%s_%s.xlsx", filter.From, filter.To), nil
}

// aggregateFees 按顾问、类型分组计数，按顾问名与类型排序
func aggregateFees(records []model.ScheduleRecord, codes map[string]model.CommonCode) []feeRow {
	index := make(map[string]*feeRow)
	for _, rec := range records {
		consultant := rec.ConsultantName
		if consultant == "" {
			consultant = rec.ConsultantID
		}
		key := consultant + "\x00" + rec.TypeCode
		r, ok := index[key]
		if !ok {
			r = &feeRow{consultant: consultant, typeCode: rec.TypeCode, typeName: rec.TypeCode}
			if cc, found := codes[rec.TypeCode]; found {
				r.typeName = cc.Name
				r.unitFee = cc.UnitFee
			}
			index[key] = r
		}
		r.count++
	}

	rows := make([]feeRow, 0, len(index))
	for _, r := range index {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].consultant != rows[j].consultant {
			return rows[i].consultant < rows[j].consultant
		}
		return rows[i].typeCode < rows[j].typeCode
	})
	return rows
}

// load 读取区间内日程并按条件筛选，同时返回类型代码索引
func (s *exportService) load(ctx context.Context, filter *dto.ScheduleFilter) ([]model.ScheduleRecord, map[string]model.CommonCode, error) {
	records, err := s.schedules.ListRange(ctx, filter.From, filter.To)
	if err != nil {
		return nil, nil, err
	}
	records = FilterRecords(records, filter.ConsultantID, filter.TypeCode)
	if len(records) == 0 {
		return nil, nil, ErrExportNoItems
	}

	list, err := s.repo.CommonCode.List(ctx)
	if err != nil {
		s.logger.Error("加载公共代码失败", zap.Error(err))
		return nil, nil, err
	}
	codes := make(map[string]model.CommonCode, len(list))
	for _, cc := range list {
		codes[cc.Code] = cc
	}
	return records, codes, nil
}

// ── 样式 ──

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "#BFBFBF", Style: 1},
		{Type: "right", Color: "#BFBFBF", Style: 1},
		{Type: "top", Color: "#BFBFBF", Style: 1},
		{Type: "bottom", Color: "#BFBFBF", Style: 1},
	}
}

func headerStyleDef() *excelize.Style {
	return &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#00462A"}, Pattern: 1},
		Border:    thinBorders(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}
}

func bodyStyleDef(color string) *excelize.Style {
	st := &excelize.Style{
		Border:    thinBorders(),
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	}
	if color != "" {
		st.Fill = excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}
	return st
}

func moneyStyleDef(bold bool) *excelize.Style {
	st := &excelize.Style{
		Border: thinBorders(),
		NumFmt: 3, // #,##0
	}
	if bold {
		st.Font = &excelize.Font{Bold: true}
		st.Fill = excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1}
	}
	return st
}

// normalizeColor 只接受 #RRGGBB / RRGGBB，其余视为无底色
func normalizeColor(c string) string {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	if len(c) != 6 {
		return ""
	}
	for _, r := range c {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return ""
		}
	}
	return "#" + strings.ToUpper(c)
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
