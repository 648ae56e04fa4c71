package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

var seoul = time.FixedZone("KST", 9*3600)

// 2026-03-01 的 Excel 日期序列号
const march2026Serial = 46082

func buildWorkbook(t *testing.T, fill func(f *excelize.File, sheet string)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	fill(f, "Sheet1")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func marchSheet(f *excelize.File, sheet string) {
	_ = f.SetCellValue(sheet, "A1", march2026Serial)
	_ = f.SetCellValue(sheet, "B2", 5)
	_ = f.SetCellValue(sheet, "B3", "10:00 서류면접(홍길동)")
}

func lookupWith(users ...model.User) Lookup {
	return Lookup{
		Codes: []model.CommonCode{{Code: "DOC", Name: "서류면접"}},
		Users: users,
	}
}

func TestParseWorkbook_RoundTrip(t *testing.T) {
	data := buildWorkbook(t, marchSheet)

	res, err := ParseWorkbook(data, lookupWith(model.User{UID: "u-1", Name: "홍길동"}), Options{Location: seoul})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, rec.Date.Equal(time.Date(2026, 3, 5, 10, 0, 0, 0, seoul)), "date=%v", rec.Date)
	assert.Equal(t, "DOC", rec.TypeCode)
	assert.Equal(t, "u-1", rec.ConsultantID)
	assert.Equal(t, "홍길동", rec.ConsultantName)
	assert.Empty(t, res.UnmatchedConsultants)
	assert.Empty(t, res.UnmatchedTypes)
	assert.Equal(t, []string{"2026-03"}, res.Months)
	assert.Equal(t, 1, res.SheetsParsed)
}

func TestParseWorkbook_UnmatchedConsultant(t *testing.T) {
	data := buildWorkbook(t, marchSheet)

	res, err := ParseWorkbook(data, lookupWith(), Options{Location: seoul})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	assert.Equal(t, "unknown_홍길동", res.Records[0].ConsultantID)
	assert.Equal(t, "홍길동", res.Records[0].ConsultantName)
	assert.Equal(t, []string{"홍길동"}, res.UnmatchedConsultants)
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	_, err := ParseWorkbook([]byte("plain text"), Lookup{}, Options{})
	assert.ErrorIs(t, err, ErrInvalidWorkbook)
}

func textRow(cells ...string) []Cell {
	row := make([]Cell, len(cells))
	for i, c := range cells {
		if c != "" {
			row[i] = Cell{Kind: CellText, Text: c}
		}
	}
	return row
}

func numRow(width int, at map[int]float64) []Cell {
	row := make([]Cell, width)
	for col, n := range at {
		row[col] = Cell{Kind: CellNumber, Number: n}
	}
	return row
}

func TestParse_RollingDayState(t *testing.T) {
	sheet := Sheet{
		Name: "시트",
		Rows: [][]Cell{
			textRow("2026년 4월 상담 일정"),
			numRow(3, map[int]float64{0: 1, 1: 2, 2: 3}),
			textRow("09:30 서류면접(홍길동T)", "", "14.00 모의면접(김철수_B관)*지각 주의"),
			numRow(3, map[int]float64{1: 9}),
			textRow("", "11:00 서류면접(이영희)\n13:00 서류면접(홍길동)"),
		},
	}
	lookup := Lookup{
		Codes: []model.CommonCode{{Code: "DOC", Name: "서류면접"}},
		Users: []model.User{{UID: "u-1", Name: "홍길동"}, {UID: "u-2", Name: "김 철수"}},
	}

	res, err := Parse([]Sheet{sheet}, lookup, Options{Location: seoul})
	require.NoError(t, err)
	require.Len(t, res.Records, 4)

	first := res.Records[0]
	assert.True(t, first.Date.Equal(time.Date(2026, 4, 1, 9, 30, 0, 0, seoul)))
	assert.Equal(t, "u-1", first.ConsultantID, "末尾 T 应被忽略")

	second := res.Records[1]
	assert.True(t, second.Date.Equal(time.Date(2026, 4, 3, 14, 0, 0, 0, seoul)))
	assert.Equal(t, "u-2", second.ConsultantID, "姓名中的空白应被忽略")
	assert.Equal(t, "B관", second.Location)
	assert.Equal(t, "지각 주의", second.Memo)
	assert.Equal(t, "모의면접", second.TypeCode, "未匹配的类型保留原文")

	// 第 2 列被 9 覆盖，同一单元格两行各成一条
	assert.Equal(t, 9, res.Records[2].Date.Day())
	assert.Equal(t, "unknown_이영희", res.Records[2].ConsultantID)
	assert.Equal(t, 9, res.Records[3].Date.Day())

	assert.Equal(t, []string{"이영희"}, res.UnmatchedConsultants)
	assert.Equal(t, []string{"모의면접"}, res.UnmatchedTypes)
}

func TestParse_EdgeCases(t *testing.T) {
	t.Run("少于三行的表被跳过", func(t *testing.T) {
		sheet := Sheet{Name: "2026년 3월", Rows: [][]Cell{textRow("x"), textRow("y")}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{})
		assert.ErrorIs(t, err, ErrNoRecords)
		assert.Equal(t, []string{"2026년 3월"}, res.SkippedSheets)
	})

	t.Run("无年月的表被跳过", func(t *testing.T) {
		sheet := Sheet{Name: "Sheet1", Rows: [][]Cell{
			textRow("상담 일정"),
			numRow(1, map[int]float64{0: 5}),
			textRow("10:00 서류면접(홍길동)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{})
		assert.ErrorIs(t, err, ErrNoRecords)
		assert.Equal(t, 0, res.SheetsParsed)
	})

	t.Run("表名兜底加默认年份", func(t *testing.T) {
		sheet := Sheet{Name: "5월", Rows: [][]Cell{
			textRow("상담 일정"),
			numRow(1, map[int]float64{0: 5}),
			textRow("10:00 서류면접(홍길동)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{DefaultYear: 2027, Location: seoul})
		require.NoError(t, err)
		assert.Equal(t, time.Month(5), res.Records[0].Date.Month())
		assert.Equal(t, 2027, res.Records[0].Date.Year())
	})

	t.Run("表头覆盖表名", func(t *testing.T) {
		sheet := Sheet{Name: "2025년 1월", Rows: [][]Cell{
			textRow("2026년 3월"),
			numRow(1, map[int]float64{0: 5}),
			textRow("10:00 서류면접(홍길동)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{Location: seoul})
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-03"}, res.Months)
	})

	t.Run("非整数与越界数字不更新日期", func(t *testing.T) {
		sheet := Sheet{Name: "2026년 3월", Rows: [][]Cell{
			textRow("헤더"),
			numRow(3, map[int]float64{0: 4.5, 1: 40, 2: 7}),
			textRow("10:00 A(a)", "10:00 B(b)", "10:00 C(c)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{Location: seoul})
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, 7, res.Records[0].Date.Day())
	})

	t.Run("超出最大列数的列被忽略", func(t *testing.T) {
		sheet := Sheet{Name: "2026년 3월", Rows: [][]Cell{
			textRow("헤더"),
			numRow(3, map[int]float64{0: 1, 2: 3}),
			textRow("10:00 A(a)", "", "10:00 C(c)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{MaxColumns: 2, Location: seoul})
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, 1, res.Records[0].Date.Day())
	})

	t.Run("超过当月天数的日期被跳过", func(t *testing.T) {
		sheet := Sheet{Name: "2026년 2월", Rows: [][]Cell{
			textRow("헤더"),
			numRow(2, map[int]float64{0: 30, 1: 28}),
			textRow("10:00 A(a)", "10:00 B(b)"),
		}}
		res, err := Parse([]Sheet{sheet}, Lookup{}, Options{Location: seoul})
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, 28, res.Records[0].Date.Day())
	})
}

func TestNoRecordsError(t *testing.T) {
	sheet := Sheet{Name: "2026년 3월", Rows: [][]Cell{
		textRow("헤더"),
		numRow(1, map[int]float64{0: 1}),
		textRow("내용 없음"),
	}}
	_, err := Parse([]Sheet{sheet}, Lookup{}, Options{})

	var nre *NoRecordsError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, 1, nre.SheetsParsed)
	assert.Equal(t, 2, nre.CellsScanned)
	assert.Contains(t, err.Error(), "10:00")
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{" 홍길동 ", "홍길동"},
		{"홍길동T", "홍길동"},
		{"홍길동 T", "홍길동"},
		{"김 철 수", "김철수"},
		{"(서류)면접", "서류면접"},
		{"PT", "PT"},
		{"T", "T"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "输入 %q", tt.in)
	}
}
