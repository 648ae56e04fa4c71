package model

// CommonCode 公共代码表 — 对应 common_codes
// 作为咨询类型的查找/展示表；删除不级联，日程中的引用允许成为孤儿
type CommonCode struct {
	Code        string `gorm:"type:varchar(50);primaryKey"            json:"code"`
	Name        string `gorm:"type:varchar(100);not null"             json:"name"`
	Description string `gorm:"type:varchar(500);not null;default:''"  json:"description"`
	Color       string `gorm:"type:varchar(20);not null;default:''"   json:"color"`
	BorderColor string `gorm:"type:varchar(20);not null;default:''"   json:"border_color"`
	UnitFee     int64  `gorm:"not null;default:0"                     json:"unit_fee"`
	BaseModel
}

func (CommonCode) TableName() string { return "common_codes" }
