package dto

import (
	"time"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

// ── 日程模块 DTO ──

// ScheduleInput 单条日程输入（ID 由服务端生成，不接受客户端传入）
type ScheduleInput struct {
	Date           time.Time  `json:"date"            binding:"required"`
	EndDate        *time.Time `json:"end_date"`
	ConsultantID   string     `json:"consultant_id"   binding:"omitempty,max=100"`
	ConsultantName string     `json:"consultant_name" binding:"omitempty,max=100"`
	TypeCode       string     `json:"type_code"       binding:"required,max=100"`
	Location       string     `json:"location"        binding:"omitempty,max=200"`
	Memo           string     `json:"memo"            binding:"omitempty,max=1000"`
}

// ToRecord 转为领域记录
func (in *ScheduleInput) ToRecord() model.ScheduleRecord {
	return model.ScheduleRecord{
		Date:           in.Date,
		EndDate:        in.EndDate,
		ConsultantID:   in.ConsultantID,
		ConsultantName: in.ConsultantName,
		TypeCode:       in.TypeCode,
		Location:       in.Location,
		Memo:           in.Memo,
	}
}

// MonthLocator 定位记录所在月份（更新/删除时必填，用于只读一个月份文档）
type MonthLocator struct {
	Month string `form:"month" binding:"required,yearmonth"`
}

// ReconcileRequest 批量合并/替换请求
type ReconcileRequest struct {
	Mode    string          `json:"mode"    binding:"required,oneof=merge replace"`
	Months  []string        `json:"months"  binding:"omitempty,dive,yearmonth"`
	Records []ScheduleInput `json:"records" binding:"omitempty,dive"`
}

// ScheduleFilter 导出/日历筛选条件
type ScheduleFilter struct {
	From         string `form:"from"          binding:"required,yearmonth"`
	To           string `form:"to"            binding:"required,yearmonth"`
	ConsultantID string `form:"consultant_id" binding:"omitempty,max=100"`
	TypeCode     string `form:"type_code"     binding:"omitempty,max=100"`
}

// ReconcileResponse 批量对账结果
type ReconcileResponse struct {
	Summary model.ChangeSummary `json:"summary"`
	Details model.ChangeDetails `json:"details"`
	Months  []string            `json:"months"`
}

// ChangeLogListResponse 最近变更日志
type ChangeLogListResponse struct {
	Entries []model.ChangeLogEntry `json:"entries"`
}
