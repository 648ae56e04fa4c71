package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/api/handler"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/api/router"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/database"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/docstore"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/jwt"
	applogger "github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/logger"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/redis"
)

func main() {
	// 0. 本地开发时从 .env 注入环境变量（文件不存在时忽略）
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("EWH_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("docstore", cfg.DocStore.Driver),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 4. 初始化文档存储（月份日程与变更日志）
	store, err := openDocStore(cfg, db)
	if err != nil {
		logger.Fatal("文档存储初始化失败", zap.Error(err))
	}

	// 4.1 执行数据库迁移
	if err := migrate(cfg, db, store, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，会话存储、Token 黑名单与月份缓存将不可用", zap.Error(err))
		rdb = nil
	}

	// 6. 初始化 JWT 管理器与指标
	jwtMgr := jwt.NewManager(&cfg.Auth)
	var metrics *service.MetricsService
	if cfg.Feature.MetricsEnabled {
		metrics = service.NewMetricsService()
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db, store)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, metrics, logger)
	h := handler.NewHandler(svc, cfg.Import.MaxFileBytes)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, metrics, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := store.Close(ctx); err != nil {
		logger.Error("文档存储关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// openDocStore 按 docstore.driver 选择 SQL 文档表或 MongoDB
func openDocStore(cfg *config.Config, db *gorm.DB) (docstore.Store, error) {
	if cfg.DocStore.Driver == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := docstore.NewMongoStore(ctx, cfg.DocStore.MongoURI, cfg.DocStore.MongoDB)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return docstore.NewSQLStore(db), nil
}

// migrate postgres 走 SQL 迁移；sqlite 用 AutoMigrate
func migrate(cfg *config.Config, db *gorm.DB, store docstore.Store, logger *zap.Logger) error {
	if cfg.Database.Driver != "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		return database.RunMigrations(sqlDB, logger)
	}

	if err := database.AutoMigrate(db, &model.User{}, &model.CommonCode{}); err != nil {
		return err
	}
	if s, ok := store.(*docstore.SQLStore); ok {
		return s.AutoMigrate()
	}
	return nil
}
