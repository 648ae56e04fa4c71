package schedule

import (
	"fmt"
	"time"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

// Mode 合并模式
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// Valid 是否为已知模式
func (m Mode) Valid() bool {
	return m == ModeMerge || m == ModeReplace
}

// Partition 按月份键分组
//
// 替换模式下：未给出目标月份时，为最早一条记录所在年份的 12 个月补空组，
// 使没有新数据的月份也被清空；给出目标月份时只为这些月份补空组。
// 合并模式从不补空组。
func Partition(records []model.ScheduleRecord, mode Mode, months []string, loc *time.Location) map[string][]model.ScheduleRecord {
	groups := make(map[string][]model.ScheduleRecord)
	for _, rec := range records {
		key := MonthKey(rec.Date, loc)
		groups[key] = append(groups[key], rec)
	}

	if mode != ModeReplace {
		return groups
	}

	if len(months) > 0 {
		for _, m := range months {
			if _, ok := groups[m]; !ok {
				groups[m] = nil
			}
		}
		return groups
	}

	if len(records) == 0 {
		return groups
	}
	earliest := records[0].Date
	for _, rec := range records[1:] {
		if rec.Date.Before(earliest) {
			earliest = rec.Date
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	year := earliest.In(loc).Year()
	for m := 1; m <= 12; m++ {
		key := fmt.Sprintf("%04d-%02d", year, m)
		if _, ok := groups[key]; !ok {
			groups[key] = nil
		}
	}
	return groups
}
