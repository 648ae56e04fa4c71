package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
)

// CommonCodeRepository 公共代码数据访问接口
type CommonCodeRepository interface {
	Create(ctx context.Context, code *model.CommonCode) error
	GetByCode(ctx context.Context, code string) (*model.CommonCode, error)
	Update(ctx context.Context, code *model.CommonCode) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]model.CommonCode, error)
}

type commonCodeRepo struct {
	db *gorm.DB
}

// NewCommonCodeRepo 创建 CommonCodeRepository 实例
func NewCommonCodeRepo(db *gorm.DB) CommonCodeRepository {
	return &commonCodeRepo{db: db}
}

func (r *commonCodeRepo) Create(ctx context.Context, code *model.CommonCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *commonCodeRepo) GetByCode(ctx context.Context, code string) (*model.CommonCode, error) {
	var cc model.CommonCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&cc).Error; err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *commonCodeRepo) Update(ctx context.Context, code *model.CommonCode) error {
	return r.db.WithContext(ctx).Save(code).Error
}

func (r *commonCodeRepo) Delete(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).Where("code = ?", code).Delete(&model.CommonCode{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commonCodeRepo) List(ctx context.Context) ([]model.CommonCode, error) {
	var codes []model.CommonCode
	err := r.db.WithContext(ctx).Order("code ASC").Find(&codes).Error
	return codes, err
}
