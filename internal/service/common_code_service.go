package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
)

var (
	ErrCommonCodeNotFound = errors.New("公共代码不存在")
	ErrCommonCodeExists   = errors.New("公共代码已存在")
)

// orphanWarning 删除后日程中的引用不会被清理
const orphanWarning = "已有日程中引用该代码的记录不会被删除，将按原始代码显示"

// CommonCodeService 公共代码业务接口
type CommonCodeService interface {
	Create(ctx context.Context, req *dto.CreateCommonCodeRequest, callerID string) (*model.CommonCode, error)
	Get(ctx context.Context, code string) (*model.CommonCode, error)
	List(ctx context.Context) ([]model.CommonCode, error)
	Update(ctx context.Context, code string, req *dto.UpdateCommonCodeRequest, callerID string) (*model.CommonCode, error)
	Delete(ctx context.Context, code string) (*dto.DeleteCommonCodeResponse, error)
}

type commonCodeService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCommonCodeService 创建 CommonCodeService 实例
func NewCommonCodeService(repo *repository.Repository, logger *zap.Logger) CommonCodeService {
	return &commonCodeService{repo: repo, logger: logger}
}

func (s *commonCodeService) Create(ctx context.Context, req *dto.CreateCommonCodeRequest, callerID string) (*model.CommonCode, error) {
	codeKey := strings.TrimSpace(req.Code)
	if _, err := s.repo.CommonCode.GetByCode(ctx, codeKey); err == nil {
		return nil, ErrCommonCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询公共代码失败", zap.Error(err))
		return nil, err
	}

	code := &model.CommonCode{
		Code:        codeKey,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
		BorderColor: req.BorderColor,
		UnitFee:     req.UnitFee,
		BaseModel:   model.BaseModel{CreatedBy: &callerID},
	}
	if err := s.repo.CommonCode.Create(ctx, code); err != nil {
		s.logger.Error("创建公共代码失败", zap.String("code", codeKey), zap.Error(err))
		return nil, err
	}
	return code, nil
}

func (s *commonCodeService) Get(ctx context.Context, code string) (*model.CommonCode, error) {
	cc, err := s.repo.CommonCode.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommonCodeNotFound
		}
		s.logger.Error("查询公共代码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return cc, nil
}

func (s *commonCodeService) List(ctx context.Context) ([]model.CommonCode, error) {
	codes, err := s.repo.CommonCode.List(ctx)
	if err != nil {
		s.logger.Error("查询公共代码列表失败", zap.Error(err))
		return nil, err
	}
	return codes, nil
}

// Update code 本身不可修改
func (s *commonCodeService) Update(ctx context.Context, code string, req *dto.UpdateCommonCodeRequest, callerID string) (*model.CommonCode, error) {
	cc, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		cc.Description = *req.Description
	}
	if req.Color != nil {
		cc.Color = *req.Color
	}
	if req.BorderColor != nil {
		cc.BorderColor = *req.BorderColor
	}
	if req.UnitFee != nil {
		cc.UnitFee = *req.UnitFee
	}
	cc.UpdatedBy = &callerID

	if err := s.repo.CommonCode.Update(ctx, cc); err != nil {
		s.logger.Error("更新公共代码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return cc, nil
}

// Delete 不级联：日程里的 type_code 允许悬空
func (s *commonCodeService) Delete(ctx context.Context, code string) (*dto.DeleteCommonCodeResponse, error) {
	if err := s.repo.CommonCode.Delete(ctx, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommonCodeNotFound
		}
		s.logger.Error("删除公共代码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return &dto.DeleteCommonCodeResponse{Code: code, Warning: orphanWarning}, nil
}
