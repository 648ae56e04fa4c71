package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportSchedules 导出日程明细
// GET /api/v1/export/schedules?from=2026-03&to=2026-03
func (h *ExportHandler) ExportSchedules(c *gin.Context) {
	var filter dto.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.ExportSchedules(c.Request.Context(), &filter)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportFees 导出顾问费用汇总
// GET /api/v1/export/fees?from=2026-03&to=2026-03
func (h *ExportHandler) ExportFees(c *gin.Context) {
	var filter dto.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.ExportFees(c.Request.Context(), &filter)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportICS 导出 iCalendar 订阅文件
// GET /api/v1/export/ics?from=2026-03&to=2026-05&consultant_id=xxx
func (h *ExportHandler) ExportICS(c *gin.Context) {
	var filter dto.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	data, filename, err := h.calendarSvc.ExportICS(c.Request.Context(), &filter)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, "text/calendar; charset=utf-8", data)
}

// attachment 设置下载响应头并写出文件
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoItems):
		response.NotFound(c, 42001, "所选区间没有日程")
	case errors.Is(err, service.ErrInvalidMonth):
		response.BadRequest(c, 40005, "月份格式应为 YYYY-MM")
	case errors.Is(err, service.ErrRangeTooLarge):
		response.BadRequest(c, 40007, "查询区间过大")
	default:
		response.InternalError(c)
	}
}
