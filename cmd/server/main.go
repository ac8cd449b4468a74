package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schoolweb/config"
	"schoolweb/internal/api/handler"
	"schoolweb/internal/api/router"
	"schoolweb/internal/repository"
	"schoolweb/internal/service"
	"schoolweb/pkg/apiclient"
	"schoolweb/pkg/database"
	"schoolweb/pkg/jwt"
	applogger "schoolweb/pkg/logger"
	"schoolweb/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("SCHOOLWEB_CONFIG"))
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
		zap.Bool("calendar_enabled", cfg.Calendar.Enabled),
	)

	// 3. 连接数据库（日历同步记录）
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	version, err := database.RunMigrations(sqlDB, logger)
	if err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}
	logger.Info("数据库迁移完成", zap.Uint("version", version))

	// 4. 连接 Redis（可选：连接失败时提示消息降级为进程内存储，限流放行）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，提示消息仅在本实例内有效", zap.Error(err))
		rdb = nil
	}

	// 5. 后端 REST 客户端
	api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, logger.Named("api"))
	calendar := apiclient.New(cfg.Calendar.BaseURL, cfg.Calendar.Timeout, logger.Named("calendar"))

	// 6. 初始化 JWT 校验器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(repository.Options{
		API:      api,
		Calendar: calendar,
		DB:       db,
		Redis:    rdb,
	})
	svc := service.NewService(cfg, repo, logger)
	h := handler.NewHandler(svc)

	// 8. 定时任务：清理过期的同步记录
	scheduler := cron.New()
	if _, err := svc.SyncLog.Schedule(scheduler); err != nil {
		logger.Fatal("注册清理任务失败", zap.String("schedule", cfg.Retention.Schedule), zap.Error(err))
	}
	scheduler.Start()

	// 9. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待正在执行的清理任务结束
	<-scheduler.Stop().Done()

	// 关闭数据库连接
	if sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
