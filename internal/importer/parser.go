// Package importer 将按月排版的排班表格还原为日程记录。
//
// 每个工作表代表一个月：表头行携带年月标记，正文由"日期数字行 + 事件单元格"交替组成。
// 事件单元格格式为 "10:00 类型(姓名[_地点])[*备注]"，一个单元格内可有多行。
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

var (
	ErrInvalidWorkbook = errors.New("无法读取工作簿文件")
	ErrNoRecords       = errors.New("表格中没有可识别的日程")
)

// 日期序列号的合理范围（约 1982 年至 2091 年）
const (
	minDateSerial = 30000
	maxDateSerial = 70000
)

const defaultMaxColumns = 10

var (
	reYearMonth   = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월`)
	reYearMonthNr = regexp.MustCompile(`(\d{4})\s*[-./]\s*(\d{1,2})`)
	reYear        = regexp.MustCompile(`(\d{4})\s*년`)
	reMonth       = regexp.MustCompile(`(\d{1,2})\s*월`)
	reBareYear    = regexp.MustCompile(`(\d{4})`)
	reEvent       = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})\s*([^(]+?)\s*\(([^)]+)\)\s*\*?\s*(.*)$`)
)

// Options 解析选项
type Options struct {
	// DefaultYear 表头与表名都没有年份时使用，0 表示跳过该表
	DefaultYear int
	MaxColumns  int
	Location    *time.Location
}

// Lookup 匹配用的查找表
type Lookup struct {
	Codes []model.CommonCode
	Users []model.User
}

// Result 解析结果
type Result struct {
	Records              []model.ScheduleRecord `json:"records"`
	UnmatchedConsultants []string               `json:"unmatched_consultants"`
	UnmatchedTypes       []string               `json:"unmatched_types"`
	Months               []string               `json:"months"`
	CellsScanned         int                    `json:"cells_scanned"`
	SheetsParsed         int                    `json:"sheets_parsed"`
	SkippedSheets        []string               `json:"skipped_sheets,omitempty"`
}

// NoRecordsError 没有解析出任何记录，携带扫描统计与格式提示
type NoRecordsError struct {
	CellsScanned int
	SheetsParsed int
}

func (e *NoRecordsError) Error() string {
	return fmt.Sprintf("%s（已扫描 %d 个工作表、%d 个单元格，识别 0 条）。%s",
		ErrNoRecords.Error(), e.SheetsParsed, e.CellsScanned, FormatHint)
}

func (e *NoRecordsError) Is(target error) bool { return target == ErrNoRecords }

// FormatHint 表格格式要求
const FormatHint = "请确认：1) 每个工作表对应一个月；2) 第一行含日期（如 2026년 3월 或日期单元格）；" +
	"3) 日程单元格格式为 \"10:00 유형(이름)\"。"

// ParseWorkbook 读取并解析工作簿
func ParseWorkbook(data []byte, lookup Lookup, opts Options) (*Result, error) {
	sheets, err := ReadWorkbook(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Parse(sheets, lookup, opts)
}

// Parse 解析所有工作表，汇总为一批记录
func Parse(sheets []Sheet, lookup Lookup, opts Options) (*Result, error) {
	if opts.MaxColumns <= 0 {
		opts.MaxColumns = defaultMaxColumns
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	p := &parser{
		opts:       opts,
		codes:      indexCodes(lookup.Codes),
		users:      indexUsers(lookup.Users),
		badNames:   map[string]struct{}{},
		badTypes:   map[string]struct{}{},
		monthsSeen: map[string]struct{}{},
	}
	res := &Result{}

	for _, sheet := range sheets {
		if len(sheet.Rows) < 3 {
			res.SkippedSheets = append(res.SkippedSheets, sheet.Name)
			continue
		}
		year, month, ok := sheetMonth(sheet, opts.DefaultYear)
		if !ok {
			res.SkippedSheets = append(res.SkippedSheets, sheet.Name)
			continue
		}
		res.SheetsParsed++
		p.monthsSeen[fmt.Sprintf("%04d-%02d", year, month)] = struct{}{}
		p.parseBody(sheet, year, month, res)
	}

	res.UnmatchedConsultants = sortedKeys(p.badNames)
	res.UnmatchedTypes = sortedKeys(p.badTypes)
	res.Months = sortedKeys(p.monthsSeen)

	if len(res.Records) == 0 {
		return res, &NoRecordsError{CellsScanned: res.CellsScanned, SheetsParsed: res.SheetsParsed}
	}
	return res, nil
}

// ── 表头年月 ──

// sheetMonth 表头行优先，表名兜底；年份仍缺失时用 defaultYear
func sheetMonth(sheet Sheet, defaultYear int) (int, time.Month, bool) {
	year, month := nameYearMonth(sheet.Name)
	hy, hm := headerYearMonth(sheet.Rows[0])
	if hy > 0 {
		year = hy
	}
	if hm > 0 {
		month = hm
	}
	if year == 0 {
		year = defaultYear
	}
	if year == 0 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// headerYearMonth 第一个完整的年月标记胜出；只有部分标记时分别取第一次出现的年和月
func headerYearMonth(row []Cell) (year, month int) {
	for _, cell := range row {
		switch cell.Kind {
		case CellNumber:
			if cell.Number >= minDateSerial && cell.Number <= maxDateSerial {
				if t, err := excelize.ExcelDateToTime(cell.Number, false); err == nil {
					return t.Year(), int(t.Month())
				}
			}
		case CellDate:
			return cell.Time.Year(), int(cell.Time.Month())
		case CellText:
			if m := reYearMonth.FindStringSubmatch(cell.Text); m != nil {
				return atoi(m[1]), atoi(m[2])
			}
			if m := reYearMonthNr.FindStringSubmatch(cell.Text); m != nil {
				if mo := atoi(m[2]); mo >= 1 && mo <= 12 {
					return atoi(m[1]), mo
				}
			}
			if m := reYear.FindStringSubmatch(cell.Text); m != nil && year == 0 {
				year = atoi(m[1])
			}
			if m := reMonth.FindStringSubmatch(cell.Text); m != nil && month == 0 {
				month = atoi(m[1])
			}
		}
	}
	return year, month
}

func nameYearMonth(name string) (year, month int) {
	if m := reBareYear.FindStringSubmatch(name); m != nil {
		year = atoi(m[1])
	}
	if m := reMonth.FindStringSubmatch(name); m != nil {
		month = atoi(m[1])
	}
	return year, month
}

// ── 正文 ──

// dayState 每列当前代表的日期（0 表示未知），随行推进滚动更新
type dayState struct {
	days []int
}

func newDayState(width int) *dayState {
	return &dayState{days: make([]int, width)}
}

// observe 仅整数且在 1..31 之内的数字单元格更新该列日期
func (s *dayState) observe(col int, cell Cell) {
	if cell.Kind != CellNumber || col >= len(s.days) {
		return
	}
	if cell.Number != math.Trunc(cell.Number) || cell.Number < 1 || cell.Number > 31 {
		return
	}
	s.days[col] = int(cell.Number)
}

func (s *dayState) day(col int) int {
	if col >= len(s.days) {
		return 0
	}
	return s.days[col]
}

type parser struct {
	opts       Options
	codes      map[string]model.CommonCode
	users      map[string]model.User
	badNames   map[string]struct{}
	badTypes   map[string]struct{}
	monthsSeen map[string]struct{}
}

func (p *parser) parseBody(sheet Sheet, year int, month time.Month, res *Result) {
	state := newDayState(p.opts.MaxColumns)
	lastDay := daysIn(year, month)

	for _, row := range sheet.Rows[1:] {
		width := len(row)
		if width > p.opts.MaxColumns {
			width = p.opts.MaxColumns
		}
		for col := 0; col < width; col++ {
			cell := row[col]
			if cell.Kind == CellEmpty {
				continue
			}
			res.CellsScanned++

			if cell.Kind != CellText {
				state.observe(col, cell)
				continue
			}

			day := state.day(col)
			if day == 0 || day > lastDay {
				continue
			}
			for _, line := range strings.FieldsFunc(cell.Text, isLineBreak) {
				if rec, ok := p.parseEvent(strings.TrimSpace(line), year, month, day); ok {
					res.Records = append(res.Records, rec)
				}
			}
		}
	}
}

func (p *parser) parseEvent(line string, year int, month time.Month, day int) (model.ScheduleRecord, bool) {
	m := reEvent.FindStringSubmatch(line)
	if m == nil {
		return model.ScheduleRecord{}, false
	}
	hour, minute := atoi(m[1]), atoi(m[2])
	if hour > 23 || minute > 59 {
		return model.ScheduleRecord{}, false
	}

	typeText := strings.TrimSpace(m[3])
	name, location, _ := strings.Cut(m[4], "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ScheduleRecord{}, false
	}

	rec := model.ScheduleRecord{
		Date:     time.Date(year, month, day, hour, minute, 0, 0, p.opts.Location),
		Location: strings.TrimSpace(location),
		Memo:     strings.TrimSpace(m[5]),
	}

	if code, ok := p.codes[NormalizeName(typeText)]; ok {
		rec.TypeCode = code.Code
	} else {
		rec.TypeCode = typeText
		p.badTypes[typeText] = struct{}{}
	}

	norm := NormalizeName(name)
	if user, ok := p.users[norm]; ok {
		rec.ConsultantID = user.UID
		rec.ConsultantName = user.Name
	} else {
		rec.ConsultantID = "unknown_" + norm
		rec.ConsultantName = name
		p.badNames[name] = struct{}{}
	}
	return rec, true
}

// ── 辅助 ──

func indexCodes(codes []model.CommonCode) map[string]model.CommonCode {
	idx := make(map[string]model.CommonCode, len(codes)*2)
	for _, c := range codes {
		if k := NormalizeName(c.Code); k != "" {
			idx[k] = c
		}
	}
	// 名称优先于代码
	for _, c := range codes {
		if k := NormalizeName(c.Name); k != "" {
			idx[k] = c
		}
	}
	return idx
}

func indexUsers(users []model.User) map[string]model.User {
	idx := make(map[string]model.User, len(users))
	for _, u := range users {
		k := NormalizeName(u.Name)
		if k == "" {
			continue
		}
		if _, dup := idx[k]; !dup {
			idx[k] = u
		}
	}
	return idx
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLineBreak(r rune) bool { return r == '\n' || r == '\r' }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
