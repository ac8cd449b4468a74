package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolweb/config"
	"schoolweb/internal/api/handler"
	"schoolweb/internal/api/middleware"
	"schoolweb/pkg/jwt"
	"schoolweb/pkg/redis"
)

// 请求体上限 1MB
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "calendar": cfg.Calendar.Enabled})
	})

	writeLimit := middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window)

	// ── API v1（全部需要平台会话） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, cfg.Auth.CookieName))
	{
		// 课程模块
		registerCourseRoutes(v1.Group("/courses"), h.Courses, h.Export, writeLimit)

		// 团队模块（与课程共用后端资源）
		teams := v1.Group("/teams")
		registerCourseRoutes(teams, h.Teams, h.Export, writeLimit)
		{
			teams.POST("/:id/members", writeLimit, h.Teams.AddMembers)
			teams.DELETE("/:id/members", writeLimit, h.Teams.RemoveMembers)
		}

		// 提示消息
		v1.GET("/notices", h.Notice.DrainNotices)
	}

	return r
}

func registerCourseRoutes(g *gin.RouterGroup, ch *handler.CourseHandler, eh *handler.ExportHandler, writeLimit gin.HandlerFunc) {
	g.GET("", ch.Overview)
	g.GET("/new", ch.NewForm)
	g.GET("/:id", ch.GetCourse)
	g.GET("/:id/edit", ch.EditForm)
	g.GET("/:id/copy", ch.CopyForm)
	g.GET("/:id/sync-logs", middleware.RoleAuth("teacher", "administrator", "superhero"), ch.ListSyncLogs)
	g.GET("/:id/export/ics", eh.ExportICS)
	g.GET("/:id/export/times", eh.ExportTimes)
	g.GET("/:id/share", ch.Share)
	g.GET("/share/:token", ch.LookupShare)

	g.POST("", writeLimit, ch.CreateCourse)
	g.POST("/copy/:id", writeLimit, ch.CopyCourse)
	g.POST("/import", writeLimit, ch.Import)
	g.POST("/:id/join", writeLimit, ch.Join)
	g.PATCH("/:id", writeLimit, ch.UpdateCourse)
	g.DELETE("/:id", writeLimit, ch.DeleteCourse)
}
