package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/importer"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

// ImportHandler 日程表格导入 HTTP 处理器
type ImportHandler struct {
	importSvc service.ImportService
	maxBytes  int64
}

// NewImportHandler 创建 ImportHandler
func NewImportHandler(importSvc service.ImportService, maxBytes int64) *ImportHandler {
	return &ImportHandler{importSvc: importSvc, maxBytes: maxBytes}
}

// Preview 解析表格但不写入
// POST /api/v1/import/preview
func (h *ImportHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.importSvc.Preview(c.Request.Context(), data, req.DefaultYear)
	if err != nil {
		h.handleImportError(c, err)
		return
	}

	response.OKWithWarnings(c, result, unmatchedWarnings(result.UnmatchedConsultants, result.UnmatchedTypes))
}

// Import 解析表格并按模式写入
// POST /api/v1/import
func (h *ImportHandler) Import(c *gin.Context) {
	operatorID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var req dto.ImportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.importSvc.Import(c.Request.Context(), data, &req, operatorID)
	if err != nil {
		var partial *service.PartialApplyError
		if errors.As(err, &partial) && result != nil {
			response.PartialContent(c, 40010, "部分月份写入失败", result, err.Error())
			return
		}
		h.handleImportError(c, err)
		return
	}

	response.OKWithWarnings(c, result, unmatchedWarnings(result.UnmatchedConsultants, result.UnmatchedTypes))
}

// readUpload 读取 multipart 字段 file，超出大小上限时返回 413
func (h *ImportHandler) readUpload(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 41003, "文件过大")
			return nil, false
		}
		response.BadRequest(c, 10001, "请上传文件")
		return nil, false
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, 41003, "文件过大")
		return nil, false
	}

	file, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 10001, "无法读取上传文件")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(c, 10001, "无法读取上传文件")
		return nil, false
	}
	return data, true
}

func unmatchedWarnings(consultants, types []string) []string {
	var warnings []string
	for _, name := range consultants {
		warnings = append(warnings, "未登记的顾问: "+name)
	}
	for _, t := range types {
		warnings = append(warnings, "未登记的咨询类型: "+t)
	}
	return warnings
}

func (h *ImportHandler) handleImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, importer.ErrInvalidWorkbook):
		response.UnprocessableEntity(c, 41001, "无法读取表格文件", err.Error())
	case errors.Is(err, importer.ErrNoRecords):
		var noRecords *importer.NoRecordsError
		details := importer.FormatHint
		if errors.As(err, &noRecords) {
			details = noRecords.Error()
		}
		response.UnprocessableEntity(c, 41002, "表格中没有可识别的日程", details)
	case errors.Is(err, service.ErrInvalidMode):
		response.BadRequest(c, 40006, "模式只能是 merge 或 replace")
	default:
		response.InternalError(c)
	}
}
