package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/api/middleware"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/response"
)

// MustGetUID 从 Gin 上下文中安全提取 uid。
// 如果 JWT 中间件未正确注入 uid，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUID(c *gin.Context) (string, bool) {
	return mustGetString(c, middleware.CtxUID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, middleware.CtxRole)
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetSessionClaims 组装当前请求的会话声明
func MustGetSessionClaims(c *gin.Context) (service.SessionClaims, bool) {
	uid, ok := MustGetUID(c)
	if !ok {
		return service.SessionClaims{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.SessionClaims{}, false
	}

	claims := service.SessionClaims{
		UID:         uid,
		Role:        role,
		SessionID:   c.GetString(middleware.CtxSessionID),
		SessionKind: c.GetString(middleware.CtxSessionKind),
		JTI:         c.GetString(middleware.CtxTokenJTI),
	}
	if exp, ok := c.Get(middleware.CtxTokenExp); ok {
		claims.ExpiresAt, _ = exp.(time.Time)
	}
	return claims, true
}
