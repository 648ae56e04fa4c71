package dto

// ── 表格导入 DTO ──

// ImportRequest 导入参数（multipart 表单，文件字段名 file）
type ImportRequest struct {
	Mode        string `form:"mode"         binding:"required,oneof=merge replace"`
	DefaultYear int    `form:"default_year" binding:"omitempty,min=2000,max=2100"`
}

// PreviewRequest 预览参数
type PreviewRequest struct {
	DefaultYear int `form:"default_year" binding:"omitempty,min=2000,max=2100"`
}

// ImportResponse 导入结果；未匹配的姓名/类型需要人工跟进
type ImportResponse struct {
	Parsed               int                `json:"parsed"`
	Months               []string           `json:"months"`
	UnmatchedConsultants []string           `json:"unmatched_consultants"`
	UnmatchedTypes       []string           `json:"unmatched_types"`
	Result               *ReconcileResponse `json:"result,omitempty"`
}
