package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

func seqID() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, seoul)
}

func batch() []model.ScheduleRecord {
	return []model.ScheduleRecord{
		{Date: at(9, 14), ConsultantID: "u2", ConsultantName: "김철수", TypeCode: "RESUME"},
		{Date: at(5, 10), ConsultantID: "u1", ConsultantName: "홍길동", TypeCode: "INTERVIEW"},
	}
}

func TestReconcileMonth_MergeIntoEmpty(t *testing.T) {
	res := ReconcileMonth(nil, batch(), ModeMerge, seqID())

	if len(res.Added) != 2 || len(res.Updated) != 0 || len(res.Deleted) != 0 {
		t.Fatalf("计数不符: %+v", res.Summary())
	}
	for _, r := range res.Added {
		if r.ID == "" {
			t.Error("新增记录应分配 ID")
		}
	}
	if !res.Final[0].Date.Before(res.Final[1].Date) {
		t.Error("最终列表应按 date 升序")
	}
}

func TestReconcileMonth_IdempotentMerge(t *testing.T) {
	first := ReconcileMonth(nil, batch(), ModeMerge, seqID())
	second := ReconcileMonth(first.Final, batch(), ModeMerge, seqID())

	s := second.Summary()
	if s.Added != 0 || s.Updated != 0 || s.Deleted != 0 {
		t.Errorf("第二次合并应全部未变，实际 %+v", s)
	}
	if s.Unchanged != 2 {
		t.Errorf("期望 unchanged=2，实际 %d", s.Unchanged)
	}
	if second.Changed() {
		t.Error("无变化时不应需要写回")
	}
}

func TestReconcileMonth_TypeChangeIsUpdate(t *testing.T) {
	existing := []model.ScheduleRecord{
		{ID: "keep", Date: at(5, 10), ConsultantID: "u1", ConsultantName: "홍길동", TypeCode: "INTERVIEW", Location: "A관"},
	}
	incoming := []model.ScheduleRecord{
		{Date: at(5, 10), ConsultantID: "u1", TypeCode: "RESUME"},
	}

	res := ReconcileMonth(existing, incoming, ModeMerge, seqID())

	if len(res.Updated) != 1 || len(res.Added) != 0 || len(res.Deleted) != 0 {
		t.Fatalf("期望恰好一条更新，实际 %+v", res.Summary())
	}
	after := res.Updated[0].After
	if after.ID != "keep" {
		t.Errorf("更新应保留旧 ID，实际 %s", after.ID)
	}
	if after.TypeCode != "RESUME" {
		t.Errorf("新字段应覆盖旧字段，实际 %s", after.TypeCode)
	}
	if after.ConsultantName != "홍길동" || after.Location != "A관" {
		t.Error("新批次未提供的字段应保留旧值")
	}
	if res.Updated[0].Before.TypeCode != "INTERVIEW" {
		t.Error("before 应为旧记录")
	}
}

func TestReconcileMonth_MergeDeletesMissing(t *testing.T) {
	existing := []model.ScheduleRecord{
		{ID: "a", Date: at(5, 10), ConsultantID: "u1"},
		{ID: "b", Date: at(6, 10), ConsultantID: "u1"},
	}
	incoming := []model.ScheduleRecord{{Date: at(5, 10), ConsultantID: "u1"}}

	res := ReconcileMonth(existing, incoming, ModeMerge, seqID())
	if len(res.Deleted) != 1 || res.Deleted[0].ID != "b" {
		t.Errorf("期望删除 b，实际 %+v", res.Deleted)
	}
	if len(res.Final) != 1 || res.Final[0].ID != "a" {
		t.Errorf("最终列表不符: %+v", res.Final)
	}
}

func TestReconcileMonth_ReplaceEmptyClearsMonth(t *testing.T) {
	existing := []model.ScheduleRecord{
		{ID: "a", Date: at(5, 10), ConsultantID: "u1"},
		{ID: "b", Date: at(6, 10), ConsultantID: "u2"},
	}

	res := ReconcileMonth(existing, nil, ModeReplace, seqID())
	if len(res.Deleted) != 2 {
		t.Errorf("期望删除 2 条，实际 %d", len(res.Deleted))
	}
	if len(res.Final) != 0 {
		t.Errorf("替换为空后月份应为空，实际 %d", len(res.Final))
	}
}

func TestReconcileMonth_ReplaceKeepsGivenIDs(t *testing.T) {
	incoming := []model.ScheduleRecord{
		{ID: "given", Date: at(7, 9), ConsultantID: "u1"},
		{Date: at(2, 9), ConsultantID: "u1"},
	}
	res := ReconcileMonth([]model.ScheduleRecord{{ID: "old", Date: at(1, 9)}}, incoming, ModeReplace, seqID())

	if len(res.Added) != 2 || len(res.Deleted) != 1 {
		t.Fatalf("计数不符: %+v", res.Summary())
	}
	if res.Final[0].ID != "id-1" || res.Final[1].ID != "given" {
		t.Errorf("ID 分配或排序不符: %+v", res.Final)
	}
}

func TestReconcileMonth_DuplicateIncomingKeyLastWins(t *testing.T) {
	incoming := []model.ScheduleRecord{
		{Date: at(5, 10), ConsultantID: "u1", TypeCode: "A"},
		{Date: at(5, 10), ConsultantID: "u1", TypeCode: "B"},
	}
	res := ReconcileMonth(nil, incoming, ModeMerge, seqID())
	if len(res.Added) != 1 || res.Added[0].TypeCode != "B" {
		t.Errorf("同批次重复键应只保留最后一条，实际 %+v", res.Added)
	}
}

func TestReconcileMonth_ReplaceDuplicateKeyLastWins(t *testing.T) {
	incoming := []model.ScheduleRecord{
		{Date: at(5, 10), ConsultantID: "u1", TypeCode: "A"},
		{Date: at(6, 10), ConsultantID: "u2", TypeCode: "A"},
		{Date: at(5, 10), ConsultantID: " u1 ", TypeCode: "B"},
	}
	res := ReconcileMonth([]model.ScheduleRecord{{ID: "old", Date: at(1, 9)}}, incoming, ModeReplace, seqID())

	if len(res.Added) != 2 || len(res.Final) != 2 {
		t.Fatalf("替换模式也应按身份键去重，实际新增 %d 条，最终 %d 条", len(res.Added), len(res.Final))
	}
	if res.Final[0].TypeCode != "B" {
		t.Errorf("重复键应保留最后一条，实际 %+v", res.Final[0])
	}
	seen := map[string]bool{}
	for _, r := range res.Final {
		if seen[IdentityKey(r)] {
			t.Errorf("身份键重复: %s", IdentityKey(r))
		}
		seen[IdentityKey(r)] = true
	}
}

func TestReconcileMonth_AddedIDsStayUnique(t *testing.T) {
	existing := []model.ScheduleRecord{{ID: "keep", Date: at(5, 10), ConsultantID: "u1"}}
	incoming := []model.ScheduleRecord{
		{Date: at(5, 10), ConsultantID: "u1"},
		{ID: "keep", Date: at(6, 10), ConsultantID: "u2"},
		{ID: "dup", Date: at(7, 10), ConsultantID: "u2"},
		{ID: "dup", Date: at(8, 10), ConsultantID: "u2"},
	}

	for _, mode := range []Mode{ModeMerge, ModeReplace} {
		res := ReconcileMonth(existing, incoming, mode, seqID())
		ids := map[string]bool{}
		for _, r := range res.Final {
			if r.ID == "" || ids[r.ID] {
				t.Errorf("mode=%s ID 为空或重复: %+v", mode, res.Final)
				break
			}
			ids[r.ID] = true
		}
	}
}

func TestOutcome_Absorb(t *testing.T) {
	var o Outcome
	o.Absorb("2026-04", MonthResult{Added: []model.ScheduleRecord{{ID: "x"}}})
	o.Absorb("2026-03", MonthResult{Deleted: []model.ScheduleRecord{{ID: "y"}}, Unchanged: []model.ScheduleRecord{{ID: "z"}}})

	if o.Summary.Added != 1 || o.Summary.Deleted != 1 || o.Summary.Unchanged != 1 {
		t.Errorf("汇总计数不符: %+v", o.Summary)
	}
	if o.Months[0] != "2026-03" || o.Months[1] != "2026-04" {
		t.Errorf("月份应排序，实际 %v", o.Months)
	}
}
