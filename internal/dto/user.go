package dto

// ── 用户模块 DTO ──

// RegisterUserRequest 用户注册请求（注册后为待审批状态）
type RegisterUserRequest struct {
	UserID string `json:"user_id" binding:"required,min=2,max=50"`
	Name   string `json:"name"    binding:"required,min=1,max=100"`
	Email  string `json:"email"   binding:"omitempty,email"`
	Tel    string `json:"tel"     binding:"omitempty,max=30"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role    string `form:"role"    binding:"omitempty,oneof=admin consultant"`
	Status  string `form:"status"  binding:"omitempty,oneof=pending approved"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// UpdateUserRequest 更新用户资料请求
type UpdateUserRequest struct {
	Name  *string `json:"name"  binding:"omitempty,min=1,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
	Tel   *string `json:"tel"   binding:"omitempty,max=30"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin consultant"`
}

// SetPasswordRequest 设置数据库兜底登录密码
type SetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=64"`
}

// ResetPasswordResponse 重置兜底登录密码响应
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// ImportUserResponse 顾问名单批量导入响应
type ImportUserResponse struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []ImportUserError `json:"errors,omitempty"`
}

// ImportUserError 导入错误详情
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
