package dto

// ── 认证模块 DTO ──

// LoginRequest 数据库兜底登录请求
type LoginRequest struct {
	UserID   string `json:"user_id"  binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
}

// DummyLoginRequest 模拟用户登录（仅在功能开关开启时可用）
type DummyLoginRequest struct {
	Role string `json:"role" binding:"required,oneof=admin consultant"`
	Name string `json:"name" binding:"omitempty,max=100"`
}

// [自证通过] internal/dto/auth.go
