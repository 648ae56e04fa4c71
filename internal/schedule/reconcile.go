package schedule

import (
	"sort"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

// MonthResult 单个月份文档的对账结果
type MonthResult struct {
	Added     []model.ScheduleRecord
	Updated   []model.RecordChange
	Deleted   []model.ScheduleRecord
	Unchanged []model.ScheduleRecord
	// Final 写回月份文档的完整列表（unchanged ∪ updated ∪ added，按 date 排序）
	Final []model.ScheduleRecord
}

// Summary 计数
func (r *MonthResult) Summary() model.ChangeSummary {
	return model.ChangeSummary{
		Added:     len(r.Added),
		Updated:   len(r.Updated),
		Deleted:   len(r.Deleted),
		Unchanged: len(r.Unchanged),
	}
}

// Changed 是否需要写回
func (r *MonthResult) Changed() bool {
	return !r.Summary().IsEmpty()
}

// ReconcileMonth 将某月的新批次与现有列表对账
//
// 新批次内重复的身份键以后出现者为准（两种模式相同）。
// 替换模式：现有全部删除，去重后的新批次全部新增。
// 合并模式：按身份键匹配；匹配到的以新字段覆盖旧字段（保留旧 ID 及新批次未提供的字段），
// 有差异记为更新，无差异记为未变；现有中未被匹配的记为删除；新批次剩余的记为新增。
// 新增记录缺少 ID 或 ID 已被本月占用时由 newID 生成。
func ReconcileMonth(existing, incoming []model.ScheduleRecord, mode Mode, newID func() string) MonthResult {
	var res MonthResult
	pending, order := dedupe(incoming)
	taken := make(map[string]bool, len(existing)+len(order))

	if mode == ModeReplace {
		res.Deleted = append(res.Deleted, existing...)
	} else {
		for _, old := range existing {
			key := IdentityKey(old)
			in, ok := pending[key]
			if !ok {
				res.Deleted = append(res.Deleted, old)
				continue
			}
			delete(pending, key)
			taken[old.ID] = true

			merged := overlay(old, in)
			if Equal(old, merged) {
				res.Unchanged = append(res.Unchanged, old)
				continue
			}
			res.Updated = append(res.Updated, model.RecordChange{Before: old, After: merged})
		}
	}

	for _, key := range order {
		rec, ok := pending[key]
		if !ok {
			continue
		}
		if rec.ID == "" || taken[rec.ID] {
			rec.ID = newID()
		}
		taken[rec.ID] = true
		res.Added = append(res.Added, rec)
	}

	res.Final = make([]model.ScheduleRecord, 0, len(res.Unchanged)+len(res.Updated)+len(res.Added))
	res.Final = append(res.Final, res.Unchanged...)
	for _, u := range res.Updated {
		res.Final = append(res.Final, u.After)
	}
	res.Final = append(res.Final, res.Added...)
	SortByDate(res.Final)
	return res
}

// dedupe 按身份键去重，后出现者覆盖，顺序按首次出现
func dedupe(incoming []model.ScheduleRecord) (map[string]model.ScheduleRecord, []string) {
	pending := make(map[string]model.ScheduleRecord, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, rec := range incoming {
		key := IdentityKey(rec)
		if _, ok := pending[key]; !ok {
			order = append(order, key)
		}
		pending[key] = rec
	}
	return pending, order
}

// overlay 新记录的非空字段覆盖旧记录，ID 始终保留旧值
func overlay(old, in model.ScheduleRecord) model.ScheduleRecord {
	out := old
	if !in.Date.IsZero() {
		out.Date = in.Date
	}
	if in.EndDate != nil {
		end := *in.EndDate
		out.EndDate = &end
	}
	if in.ConsultantID != "" {
		out.ConsultantID = in.ConsultantID
	}
	if in.ConsultantName != "" {
		out.ConsultantName = in.ConsultantName
	}
	if in.TypeCode != "" {
		out.TypeCode = in.TypeCode
	}
	if in.Location != "" {
		out.Location = in.Location
	}
	if in.Memo != "" {
		out.Memo = in.Memo
	}
	return out
}

// Equal 逐字段比较
func Equal(a, b model.ScheduleRecord) bool {
	if a.ID != b.ID || !a.Date.Equal(b.Date) {
		return false
	}
	switch {
	case a.EndDate == nil && b.EndDate != nil, a.EndDate != nil && b.EndDate == nil:
		return false
	case a.EndDate != nil && !a.EndDate.Equal(*b.EndDate):
		return false
	}
	return a.ConsultantID == b.ConsultantID &&
		a.ConsultantName == b.ConsultantName &&
		a.TypeCode == b.TypeCode &&
		a.Location == b.Location &&
		a.Memo == b.Memo
}

// Outcome 一次多月对账的汇总
type Outcome struct {
	Summary model.ChangeSummary
	Details model.ChangeDetails
	Months  []string
}

// Absorb 并入某个月份的结果；调用方负责并发安全
func (o *Outcome) Absorb(month string, r MonthResult) {
	o.Summary.Added += len(r.Added)
	o.Summary.Updated += len(r.Updated)
	o.Summary.Deleted += len(r.Deleted)
	o.Summary.Unchanged += len(r.Unchanged)
	o.Details.Added = append(o.Details.Added, r.Added...)
	o.Details.Updated = append(o.Details.Updated, r.Updated...)
	o.Details.Deleted = append(o.Details.Deleted, r.Deleted...)
	o.Months = append(o.Months, month)
	sort.Strings(o.Months)
}
