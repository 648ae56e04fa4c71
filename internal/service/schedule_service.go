package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/schedule"
)

// ── 日程模块业务错误 ──

var (
	ErrScheduleNotFound           = errors.New("日程不存在")
	ErrScheduleDuplicate          = errors.New("同一时间该顾问已有日程")
	ErrScheduleDateRequired       = errors.New("日程日期不能为空")
	ErrScheduleConsultantRequired = errors.New("顾问 ID 与顾问姓名不能同时为空")
	ErrScheduleEndBeforeStart     = errors.New("结束时间不能早于开始时间")
	ErrInvalidMonth               = errors.New("月份格式应为 YYYY-MM")
	ErrInvalidMode                = errors.New("模式只能是 merge 或 replace")
	ErrRangeTooLarge              = errors.New("查询区间过大")
	ErrPartialApply               = errors.New("部分月份写入失败，已提交的月份保持生效")
)

// maxRangeMonths 区间查询最多读取的月份文档数
const maxRangeMonths = 36

// PartialApplyError 多月对账的一致性边界：月份之间相互独立，
// 某个月份失败时其他已提交的月份不会回滚
type PartialApplyError struct {
	Committed []string
	Err       error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s（已提交: %s）: %v", ErrPartialApply.Error(), strings.Join(e.Committed, ","), e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }

func (e *PartialApplyError) Is(target error) bool { return target == ErrPartialApply }

// ReconcileOptions 批量对账参数
type ReconcileOptions struct {
	Mode schedule.Mode
	// Months 替换模式下需要清空的目标月份；为空时按最早记录所在年份的 12 个月
	Months []string
}

// MonthCache 月份文档读缓存（Redis 实现；为 nil 时不缓存）
type MonthCache interface {
	GetMonth(ctx context.Context, month string) ([]byte, error)
	SetMonth(ctx context.Context, month string, payload []byte, ttl time.Duration) error
	InvalidateMonths(ctx context.Context, months ...string) error
}

// ScheduleService 日程业务接口
type ScheduleService interface {
	// Reconcile 批量合并/替换；每个月份一个事务，跨月份不保证原子性（失败时返回 *PartialApplyError）
	Reconcile(ctx context.Context, records []model.ScheduleRecord, opts ReconcileOptions, operatorID string) (*schedule.Outcome, error)
	AddSchedule(ctx context.Context, rec model.ScheduleRecord, operatorID string) (*model.ScheduleRecord, error)
	// UpdateSchedule month 为记录当前所在月份；日期跨月时在同一事务内移动到新月份
	UpdateSchedule(ctx context.Context, month, id string, rec model.ScheduleRecord, operatorID string) (*model.ScheduleRecord, error)
	DeleteSchedule(ctx context.Context, month, id, operatorID string) error
	GetMonth(ctx context.Context, month string) (*model.MonthDocument, error)
	ListRange(ctx context.Context, from, to string) ([]model.ScheduleRecord, error)
	LoadAll(ctx context.Context) ([]model.ScheduleRecord, error)
	ListChangeLogs(ctx context.Context) ([]model.ChangeLogEntry, error)
	Location() *time.Location
}

type scheduleService struct {
	repo     *repository.Repository
	cache    MonthCache
	cacheTTL time.Duration
	logLimit int
	loc      *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
	// 同一月份的并发加载只打一次存储
	flight singleflight.Group
	newID  func() string

	// 每个月份的写入代数；加载期间代数变化则不回填缓存
	genMu sync.Mutex
	gens  map[string]uint64
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(
	cfg *config.Config,
	repo *repository.Repository,
	cache MonthCache,
	metrics *MetricsService,
	logger *zap.Logger,
) ScheduleService {
	limit := cfg.Schedule.ChangeLogLimit
	if limit <= 0 || limit > 30 {
		limit = 30
	}
	return &scheduleService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cfg.Redis.MonthTTL,
		logLimit: limit,
		loc:      cfg.Schedule.Location(),
		metrics:  metrics,
		logger:   logger,
		newID:    uuid.NewString,
		gens:     make(map[string]uint64),
	}
}

func (s *scheduleService) Location() *time.Location { return s.loc }

// ════════════════════════════════════════════════════════════
// Reconcile — 按月分组，逐月事务
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Reconcile(ctx context.Context, records []model.ScheduleRecord, opts ReconcileOptions, operatorID string) (*schedule.Outcome, error) {
	if !opts.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	for _, m := range opts.Months {
		if _, err := schedule.ParseMonth(m, s.loc); err != nil {
			return nil, ErrInvalidMonth
		}
	}
	cleaned := make([]model.ScheduleRecord, 0, len(records))
	for _, rec := range records {
		r, err := cleanRecord(rec)
		if err != nil {
			return nil, err
		}
		cleaned = append(cleaned, r)
	}

	groups := schedule.Partition(cleaned, opts.Mode, opts.Months, s.loc)

	var (
		mu      sync.Mutex
		outcome schedule.Outcome
		g       errgroup.Group
	)
	// 不使用 errgroup.WithContext：一个月份失败不取消其他月份
	for month, items := range groups {
		month, items := month, items
		g.Go(func() error {
			res, err := s.reconcileMonth(ctx, month, items, opts.Mode)
			if err != nil {
				s.logger.Error("月份对账失败", zap.String("month", month), zap.Error(err))
				return fmt.Errorf("月份 %s: %w", month, err)
			}
			mu.Lock()
			outcome.Absorb(month, res)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	s.invalidate(ctx, outcome.Months...)

	changeType := model.ChangeMerge
	if opts.Mode == schedule.ModeReplace {
		changeType = model.ChangeReplace
	}
	if !outcome.Summary.IsEmpty() {
		s.appendLog(ctx, &model.ChangeLogEntry{
			Type:       changeType,
			Summary:    outcome.Summary,
			Details:    outcome.Details,
			Months:     outcome.Months,
			OperatorID: operatorID,
		})
	}
	s.metrics.ObserveWrite(changeType, err, outcome.Summary.Added, outcome.Summary.Updated, outcome.Summary.Deleted)

	if err != nil {
		return &outcome, &PartialApplyError{Committed: outcome.Months, Err: err}
	}

	s.logger.Info("日程对账完成",
		zap.String("mode", string(opts.Mode)),
		zap.Strings("months", outcome.Months),
		zap.Int("added", outcome.Summary.Added),
		zap.Int("updated", outcome.Summary.Updated),
		zap.Int("deleted", outcome.Summary.Deleted),
		zap.Int("unchanged", outcome.Summary.Unchanged),
	)
	return &outcome, nil
}

// reconcileMonth 在一个事务内完成读取、对账与合并写回
func (s *scheduleService) reconcileMonth(ctx context.Context, month string, incoming []model.ScheduleRecord, mode schedule.Mode) (schedule.MonthResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveMonthTx(time.Since(start)) }()

	var res schedule.MonthResult
	err := s.repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		existing, err := tx.Load(month)
		if err != nil {
			return err
		}
		res = schedule.ReconcileMonth(existing, incoming, mode, s.newID)
		if !res.Changed() {
			return nil
		}
		return tx.Save(month, res.Final)
	})
	return res, err
}

// ════════════════════════════════════════════════════════════
// 单条记录操作
// ════════════════════════════════════════════════════════════

func (s *scheduleService) AddSchedule(ctx context.Context, rec model.ScheduleRecord, operatorID string) (*model.ScheduleRecord, error) {
	rec, err := cleanRecord(rec)
	if err != nil {
		return nil, err
	}
	// ID 始终由服务端生成，调用方传入的值不可信
	rec.ID = s.newID()
	month := schedule.MonthKey(rec.Date, s.loc)

	err = s.repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		items, err := tx.Load(month)
		if err != nil {
			return err
		}
		if conflictsWith(items, rec, "") {
			return ErrScheduleDuplicate
		}
		items = append(items, rec)
		schedule.SortByDate(items)
		return tx.Save(month, items)
	})
	s.metrics.ObserveWrite(model.ChangeAdd, err, 1, 0, 0)
	if err != nil {
		if !errors.Is(err, ErrScheduleDuplicate) {
			s.logger.Error("新增日程失败", zap.String("month", month), zap.Error(err))
		}
		return nil, err
	}

	s.invalidate(ctx, month)
	s.appendLog(ctx, &model.ChangeLogEntry{
		Type:       model.ChangeAdd,
		Summary:    model.ChangeSummary{Added: 1},
		Details:    model.ChangeDetails{Added: []model.ScheduleRecord{rec}},
		Months:     []string{month},
		OperatorID: operatorID,
	})
	return &rec, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, month, id string, rec model.ScheduleRecord, operatorID string) (*model.ScheduleRecord, error) {
	if _, err := schedule.ParseMonth(month, s.loc); err != nil {
		return nil, ErrInvalidMonth
	}
	after, err := cleanRecord(rec)
	if err != nil {
		return nil, err
	}
	after.ID = id
	target := schedule.MonthKey(after.Date, s.loc)

	var before model.ScheduleRecord
	err = s.repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		items, err := tx.Load(month)
		if err != nil {
			return err
		}
		idx := indexOf(items, id)
		if idx < 0 {
			return ErrScheduleNotFound
		}
		before = items[idx]

		if target == month {
			if conflictsWith(items, after, id) {
				return ErrScheduleDuplicate
			}
			items[idx] = after
			schedule.SortByDate(items)
			return tx.Save(month, items)
		}

		// 跨月移动：两个月份文档在同一事务内读写
		dest, err := tx.Load(target)
		if err != nil {
			return err
		}
		if conflictsWith(dest, after, id) {
			return ErrScheduleDuplicate
		}
		items = append(items[:idx], items[idx+1:]...)
		dest = append(dest, after)
		schedule.SortByDate(dest)
		if err := tx.Save(month, items); err != nil {
			return err
		}
		return tx.Save(target, dest)
	})
	s.metrics.ObserveWrite(model.ChangeUpdate, err, 0, 1, 0)
	if err != nil {
		if !errors.Is(err, ErrScheduleNotFound) && !errors.Is(err, ErrScheduleDuplicate) {
			s.logger.Error("更新日程失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	months := []string{month}
	if target != month {
		months = append(months, target)
	}
	s.invalidate(ctx, months...)
	s.appendLog(ctx, &model.ChangeLogEntry{
		Type:       model.ChangeUpdate,
		Summary:    model.ChangeSummary{Updated: 1},
		Details:    model.ChangeDetails{Updated: []model.RecordChange{{Before: before, After: after}}},
		Months:     months,
		OperatorID: operatorID,
	})
	return &after, nil
}

func (s *scheduleService) DeleteSchedule(ctx context.Context, month, id, operatorID string) error {
	if _, err := schedule.ParseMonth(month, s.loc); err != nil {
		return ErrInvalidMonth
	}

	var removed model.ScheduleRecord
	err := s.repo.Month.RunInTx(ctx, func(tx repository.MonthTx) error {
		items, err := tx.Load(month)
		if err != nil {
			return err
		}
		idx := indexOf(items, id)
		if idx < 0 {
			return ErrScheduleNotFound
		}
		removed = items[idx]
		items = append(items[:idx], items[idx+1:]...)
		return tx.Save(month, items)
	})
	s.metrics.ObserveWrite(model.ChangeDelete, err, 0, 0, 1)
	if err != nil {
		if !errors.Is(err, ErrScheduleNotFound) {
			s.logger.Error("删除日程失败", zap.String("id", id), zap.Error(err))
		}
		return err
	}

	s.invalidate(ctx, month)
	s.appendLog(ctx, &model.ChangeLogEntry{
		Type:       model.ChangeDelete,
		Summary:    model.ChangeSummary{Deleted: 1},
		Details:    model.ChangeDetails{Deleted: []model.ScheduleRecord{removed}},
		Months:     []string{month},
		OperatorID: operatorID,
	})
	return nil
}

// ════════════════════════════════════════════════════════════
// 读取
// ════════════════════════════════════════════════════════════

func (s *scheduleService) GetMonth(ctx context.Context, month string) (*model.MonthDocument, error) {
	if _, err := schedule.ParseMonth(month, s.loc); err != nil {
		return nil, ErrInvalidMonth
	}

	if doc, ok := s.cachedMonth(ctx, month); ok {
		return doc, nil
	}

	v, err, _ := s.flight.Do(month, func() (interface{}, error) {
		gen := s.generation(month)
		doc, err := s.repo.Month.Get(ctx, month)
		if err != nil {
			return nil, err
		}
		if s.generation(month) != gen {
			return doc, nil
		}
		s.storeMonth(ctx, doc)
		// 回填与并发写入交错时撤销本次回填
		if s.generation(month) != gen {
			s.invalidate(ctx, month)
		}
		return doc, nil
	})
	if err != nil {
		s.logger.Error("读取月份日程失败", zap.String("month", month), zap.Error(err))
		return nil, err
	}

	shared := v.(*model.MonthDocument)
	return &model.MonthDocument{
		Month: shared.Month,
		Items: append([]model.ScheduleRecord{}, shared.Items...),
	}, nil
}

func (s *scheduleService) ListRange(ctx context.Context, from, to string) ([]model.ScheduleRecord, error) {
	start, err := schedule.ParseMonth(from, s.loc)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	end, err := schedule.ParseMonth(to, s.loc)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	months := schedule.MonthsBetween(start, end, s.loc)
	if len(months) > maxRangeMonths {
		return nil, ErrRangeTooLarge
	}

	docs := make([]*model.MonthDocument, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, m := range months {
		i, m := i, m
		g.Go(func() error {
			doc, err := s.GetMonth(gctx, m)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.ScheduleRecord
	for _, d := range docs {
		out = append(out, d.Items...)
	}
	return out, nil
}

// LoadAll 管理员全量加载，一次枚举全部月份文档
func (s *scheduleService) LoadAll(ctx context.Context) ([]model.ScheduleRecord, error) {
	docs, err := s.repo.Month.ListAll(ctx)
	if err != nil {
		s.logger.Error("全量加载日程失败", zap.Error(err))
		return nil, err
	}
	var out []model.ScheduleRecord
	for _, d := range docs {
		out = append(out, d.Items...)
	}
	schedule.SortByDate(out)
	return out, nil
}

func (s *scheduleService) ListChangeLogs(ctx context.Context) ([]model.ChangeLogEntry, error) {
	entries, err := s.repo.ChangeLog.ListRecent(ctx, s.logLimit)
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// ── 缓存与日志 ──

func (s *scheduleService) cachedMonth(ctx context.Context, month string) (*model.MonthDocument, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.GetMonth(ctx, month)
	if err != nil {
		s.metrics.RecordMonthCache(false)
		return nil, false
	}
	doc := &model.MonthDocument{Month: month}
	if err := json.Unmarshal(payload, doc); err != nil {
		s.metrics.RecordMonthCache(false)
		return nil, false
	}
	if doc.Items == nil {
		doc.Items = []model.ScheduleRecord{}
	}
	s.metrics.RecordMonthCache(true)
	return doc, true
}

func (s *scheduleService) storeMonth(ctx context.Context, doc *model.MonthDocument) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.cache.SetMonth(ctx, doc.Month, payload, s.cacheTTL); err != nil {
		s.logger.Warn("写入月份缓存失败", zap.String("month", doc.Month), zap.Error(err))
	}
}

func (s *scheduleService) invalidate(ctx context.Context, months ...string) {
	if s.cache == nil || len(months) == 0 {
		return
	}
	s.genMu.Lock()
	for _, m := range months {
		s.gens[m]++
	}
	s.genMu.Unlock()
	for _, m := range months {
		s.flight.Forget(m)
	}
	if err := s.cache.InvalidateMonths(ctx, months...); err != nil {
		s.logger.Warn("清除月份缓存失败", zap.Strings("months", months), zap.Error(err))
	}
}

func (s *scheduleService) generation(month string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[month]
}

// appendLog 变更日志写入失败不影响已提交的日程
func (s *scheduleService) appendLog(ctx context.Context, entry *model.ChangeLogEntry) {
	entry.Timestamp = time.Now()
	if err := s.repo.ChangeLog.Append(ctx, entry); err != nil {
		s.logger.Error("写入变更日志失败", zap.String("type", entry.Type), zap.Error(err))
	}
}

// ── 辅助 ──

func cleanRecord(rec model.ScheduleRecord) (model.ScheduleRecord, error) {
	if rec.Date.IsZero() {
		return rec, ErrScheduleDateRequired
	}
	rec.ConsultantID = strings.TrimSpace(rec.ConsultantID)
	rec.ConsultantName = strings.TrimSpace(rec.ConsultantName)
	if rec.ConsultantID == "" && rec.ConsultantName == "" {
		return rec, ErrScheduleConsultantRequired
	}
	if rec.EndDate != nil && rec.EndDate.Before(rec.Date) {
		return rec, ErrScheduleEndBeforeStart
	}
	rec.TypeCode = strings.TrimSpace(rec.TypeCode)
	return rec, nil
}

func indexOf(items []model.ScheduleRecord, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// conflictsWith 月份内是否已有相同身份键的其他记录
func conflictsWith(items []model.ScheduleRecord, rec model.ScheduleRecord, selfID string) bool {
	key := schedule.IdentityKey(rec)
	for i := range items {
		if items[i].ID != selfID && schedule.IdentityKey(items[i]) == key {
			return true
		}
	}
	return false
}

// FilterRecords 按顾问与类型筛选（空条件不过滤）
func FilterRecords(records []model.ScheduleRecord, consultantID, typeCode string) []model.ScheduleRecord {
	if consultantID == "" && typeCode == "" {
		return records
	}
	out := make([]model.ScheduleRecord, 0, len(records))
	for _, r := range records {
		if consultantID != "" && r.ConsultantID != consultantID {
			continue
		}
		if typeCode != "" && r.TypeCode != typeCode {
			continue
		}
		out = append(out, r)
	}
	return out
}
