// Package schedule 月份聚合日程的纯逻辑：身份键、月份键、分组与逐月合并/替换。
// 不依赖存储层，由 service 层在每个月份文档的事务内调用。
package schedule

import (
	"sort"
	"strings"
	"time"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

const (
	identityTimeLayout = "2006-01-02T15:04"
	monthLayout        = "2006-01"
)

// IdentityKey 日程身份键：UTC 精确到分钟 + "_" + 顾问 ID（为空时用顾问姓名）
// 咨询类型不参与身份键，类型变化视为更新
func IdentityKey(rec model.ScheduleRecord) string {
	consultant := strings.TrimSpace(rec.ConsultantID)
	if consultant == "" {
		consultant = strings.TrimSpace(rec.ConsultantName)
	}
	return rec.Date.UTC().Truncate(time.Minute).Format(identityTimeLayout) + "_" + consultant
}

// MonthKey 日期所属月份文档键 YYYY-MM（按日程时区计算）
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(monthLayout)
}

// ParseMonth 校验并解析 YYYY-MM
func ParseMonth(month string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(monthLayout, month, loc)
}

// MonthsBetween 返回 [from, to] 覆盖的所有月份键（含首尾）
func MonthsBetween(from, to time.Time, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	from, to = from.In(loc), to.In(loc)
	if to.Before(from) {
		return nil
	}
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, loc)
	var months []string
	for !cur.After(end) {
		months = append(months, cur.Format(monthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// SortByDate 按 date 升序稳定排序
func SortByDate(items []model.ScheduleRecord) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
}
