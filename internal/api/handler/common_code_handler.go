package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

// CommonCodeHandler 公共代码（咨询类型）HTTP 处理器
type CommonCodeHandler struct {
	codeSvc service.CommonCodeService
}

// NewCommonCodeHandler 创建 CommonCodeHandler
func NewCommonCodeHandler(codeSvc service.CommonCodeService) *CommonCodeHandler {
	return &CommonCodeHandler{codeSvc: codeSvc}
}

// List GET /api/v1/common-codes
func (h *CommonCodeHandler) List(c *gin.Context) {
	codes, err := h.codeSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, codes)
}

// Get GET /api/v1/common-codes/:code
func (h *CommonCodeHandler) Get(c *gin.Context) {
	cc, err := h.codeSvc.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, cc)
}

// Create POST /api/v1/common-codes
func (h *CommonCodeHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var req dto.CreateCommonCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	cc, err := h.codeSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, cc)
}

// Update PUT /api/v1/common-codes/:code
func (h *CommonCodeHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUID(c)
	if !ok {
		return
	}

	var req dto.UpdateCommonCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	cc, err := h.codeSvc.Update(c.Request.Context(), c.Param("code"), &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, cc)
}

// Delete DELETE /api/v1/common-codes/:code
// 已有日程引用该代码时不级联删除，只返回提示
func (h *CommonCodeHandler) Delete(c *gin.Context) {
	result, err := h.codeSvc.Delete(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OKWithWarnings(c, result, []string{result.Warning})
}

func (h *CommonCodeHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCommonCodeNotFound):
		response.NotFound(c, 30001, "公共代码不存在")
	case errors.Is(err, service.ErrCommonCodeExists):
		response.Conflict(c, 30002, "公共代码已存在")
	default:
		response.InternalError(c)
	}
}
