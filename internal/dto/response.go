package dto

// ── 认证模块响应 ──

// TokenResponse 登录响应
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // Access Token 有效期（秒）
	SessionKind string       `json:"session_kind"`
	User        UserResponse `json:"user"`
}

// SessionResponse 会话恢复响应（刷新页面后无需重新输入凭据）
type SessionResponse struct {
	SessionID   string       `json:"session_id"`
	SessionKind string       `json:"session_kind"`
	User        UserResponse `json:"user"`
}

// ── 用户模块响应 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	UID         string `json:"uid"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Tel         string `json:"tel"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	HasPassword bool   `json:"has_password"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// [自证通过] internal/dto/response.go
