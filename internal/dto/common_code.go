package dto

// ── 公共代码模块 DTO ──

// CreateCommonCodeRequest 创建公共代码
type CreateCommonCodeRequest struct {
	Code        string `json:"code"         binding:"required,max=50"`
	Name        string `json:"name"         binding:"required,max=100"`
	Description string `json:"description"  binding:"omitempty,max=500"`
	Color       string `json:"color"        binding:"omitempty,max=20"`
	BorderColor string `json:"border_color" binding:"omitempty,max=20"`
	UnitFee     int64  `json:"unit_fee"     binding:"omitempty,min=0"`
}

// UpdateCommonCodeRequest 更新公共代码（code 不可修改）
type UpdateCommonCodeRequest struct {
	Name        *string `json:"name"         binding:"omitempty,max=100"`
	Description *string `json:"description"  binding:"omitempty,max=500"`
	Color       *string `json:"color"        binding:"omitempty,max=20"`
	BorderColor *string `json:"border_color" binding:"omitempty,max=20"`
	UnitFee     *int64  `json:"unit_fee"     binding:"omitempty,min=0"`
}

// DeleteCommonCodeResponse 删除结果，附带孤儿引用提示
type DeleteCommonCodeResponse struct {
	Code    string `json:"code"`
	Warning string `json:"warning"`
}
