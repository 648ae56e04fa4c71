package model

import (
	"time"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
// CreatedBy/UpdatedBy 记录操作者 UID；模拟会话的 UID 不是 UUID，因此用 varchar
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(64)"                   json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(64)"                   json:"updated_by,omitempty"`
}

// [自证通过] internal/model/base.go
