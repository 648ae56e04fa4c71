package importer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// CellKind 单元格类型：数字（含日期序列号）与文本在解析中语义不同
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellDate
	CellText
)

// Cell 网格单元格
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// Sheet 一个工作表的单元格网格，Rows[0] 为表头行
type Sheet struct {
	Name string
	Rows [][]Cell
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// ReadWorkbook 读取工作簿：OLE2 头按旧版 .xls 解析，其余按 .xlsx 解析
func ReadWorkbook(r io.Reader) ([]Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	if bytes.HasPrefix(data, oleMagic) {
		return readXLS(data)
	}
	return readXLSX(data)
}

func readXLSX(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: 工作表 %s: %v", ErrInvalidWorkbook, name, err)
		}
		sheet := Sheet{Name: name, Rows: make([][]Cell, len(rows))}
		for r, row := range rows {
			cells := make([]Cell, len(row))
			for c, raw := range row {
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				typ, err := f.GetCellType(name, axis)
				if err != nil {
					return nil, err
				}
				cells[c] = xlsxCell(typ, raw)
			}
			sheet.Rows[r] = cells
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func xlsxCell(typ excelize.CellType, raw string) Cell {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Cell{Kind: CellEmpty}
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return Cell{Kind: CellNumber, Text: text, Number: n}
		}
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, text); err == nil {
			return Cell{Kind: CellDate, Text: text, Time: t}
		}
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return Cell{Kind: CellNumber, Text: text, Number: n}
		}
	}
	return Cell{Kind: CellText, Text: raw}
}

// readXLS 旧版二进制格式只暴露格式化后的字符串，纯数字文本视为数字单元格
func readXLS(data []byte) ([]Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet := Sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				sheet.Rows = append(sheet.Rows, nil)
				continue
			}
			cells := make([]Cell, row.LastCol())
			for c := range cells {
				cells[c] = textCell(row.Col(c))
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func textCell(raw string) Cell {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Cell{Kind: CellEmpty}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return Cell{Kind: CellNumber, Text: text, Number: n}
	}
	return Cell{Kind: CellText, Text: raw}
}
