package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/importer"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/schedule"
)

// ImportService 排班表格导入业务接口
type ImportService interface {
	// Preview 只解析不写入
	Preview(ctx context.Context, data []byte, defaultYear int) (*importer.Result, error)
	// Import 解析后按模式对账；替换模式只清空表格中出现的月份
	Import(ctx context.Context, data []byte, req *dto.ImportRequest, operatorID string) (*dto.ImportResponse, error)
}

type importService struct {
	cfg       *config.Config
	repo      *repository.Repository
	schedules ScheduleService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportService 创建 ImportService 实例
func NewImportService(
	cfg *config.Config,
	repo *repository.Repository,
	schedules ScheduleService,
	metrics *MetricsService,
	logger *zap.Logger,
) ImportService {
	return &importService{
		cfg:       cfg,
		repo:      repo,
		schedules: schedules,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *importService) Preview(ctx context.Context, data []byte, defaultYear int) (*importer.Result, error) {
	res, err := s.parse(ctx, data, defaultYear)
	if err != nil {
		s.metrics.ObserveImport(importResult(err))
		return nil, err
	}
	s.metrics.ObserveImport("preview")
	return res, nil
}

func (s *importService) Import(ctx context.Context, data []byte, req *dto.ImportRequest, operatorID string) (*dto.ImportResponse, error) {
	mode := schedule.Mode(req.Mode)
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	res, err := s.parse(ctx, data, req.DefaultYear)
	if err != nil {
		s.metrics.ObserveImport(importResult(err))
		return nil, err
	}

	resp := &dto.ImportResponse{
		Parsed:               len(res.Records),
		Months:               res.Months,
		UnmatchedConsultants: res.UnmatchedConsultants,
		UnmatchedTypes:       res.UnmatchedTypes,
	}

	outcome, err := s.schedules.Reconcile(ctx, res.Records, ReconcileOptions{Mode: mode, Months: res.Months}, operatorID)
	if outcome != nil {
		resp.Result = &dto.ReconcileResponse{
			Summary: outcome.Summary,
			Details: outcome.Details,
			Months:  outcome.Months,
		}
	}
	if err != nil {
		s.metrics.ObserveImport("error")
		// 部分提交时仍返回已生效的结果
		return resp, err
	}

	s.logger.Info("表格导入完成",
		zap.String("mode", req.Mode),
		zap.Int("parsed", resp.Parsed),
		zap.Strings("months", res.Months),
		zap.Int("unmatched_consultants", len(res.UnmatchedConsultants)),
	)
	s.metrics.ObserveImport("ok")
	return resp, nil
}

// parse 加载公共代码与用户作为查找表后解析
func (s *importService) parse(ctx context.Context, data []byte, defaultYear int) (*importer.Result, error) {
	codes, err := s.repo.CommonCode.List(ctx)
	if err != nil {
		s.logger.Error("加载公共代码失败", zap.Error(err))
		return nil, err
	}
	users, err := s.repo.User.ListAll(ctx)
	if err != nil {
		s.logger.Error("加载用户失败", zap.Error(err))
		return nil, err
	}

	loc := s.schedules.Location()
	if defaultYear == 0 {
		defaultYear = s.now().In(loc).Year()
	}

	res, err := importer.ParseWorkbook(data, importer.Lookup{Codes: codes, Users: users}, importer.Options{
		DefaultYear: defaultYear,
		MaxColumns:  s.cfg.Import.MaxColumns,
		Location:    loc,
	})
	if err != nil {
		if !errors.Is(err, importer.ErrNoRecords) && !errors.Is(err, importer.ErrInvalidWorkbook) {
			s.logger.Error("解析表格失败", zap.Error(err))
		}
		return nil, err
	}
	return res, nil
}

func importResult(err error) string {
	switch {
	case errors.Is(err, importer.ErrNoRecords):
		return "no_records"
	case errors.Is(err, importer.ErrInvalidWorkbook):
		return "invalid"
	default:
		return "error"
	}
}
