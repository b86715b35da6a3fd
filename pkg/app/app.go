// Package app 提供应用程序的初始化、启动与优雅关停.
package app

import (
	contextPkg "context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/statvault/pkg/configs"
	"github.com/yeisme/statvault/pkg/internal/jobs"
	"github.com/yeisme/statvault/pkg/internal/model"
	"github.com/yeisme/statvault/pkg/internal/router"
	"github.com/yeisme/statvault/pkg/internal/service"
	"github.com/yeisme/statvault/pkg/internal/storage"
	"github.com/yeisme/statvault/pkg/log"
	"github.com/yeisme/statvault/pkg/metrics"
	"github.com/yeisme/statvault/pkg/middleware"
	"github.com/yeisme/statvault/pkg/scheduler"
	"github.com/yeisme/statvault/pkg/tracing"
)

// shutdownTimeout 优雅关停的最长等待时间.
const shutdownTimeout = 10 * time.Second

// App 聚合 HTTP 引擎与全部后台组件.
type App struct {
	Engine   *gin.Engine
	config   *configs.AppConfig
	manager  *storage.Manager
	sched    *scheduler.Scheduler
	recorder *service.AuditRecorder
}

// NewApp 按依赖顺序初始化配置、日志、追踪、存储、密钥材料、审计与调度器.
// 密钥或签名配置缺失时拒绝启动, 服务不允许在无加密能力的状态下运行.
func NewApp(configPath string) (*App, error) {
	ctx := contextPkg.Background()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()

	log.Init()
	logger := log.Logger()

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	// 初始化存储（S3 / DB / KV / MQ）
	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// 建表
	if err := manager.GetDBClient().AutoMigrate(
		&model.Artifact{},
		&model.AccessToken{},
		&model.AuditEvent{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	// 加载主密钥与签名密钥, 失败直接拒绝启动
	if err := service.InitSecurity(config); err != nil {
		return nil, fmt.Errorf("init security: %w", err)
	}

	// 启动审计写入协程
	recorder := service.StartRecorder(manager.GetDBClient())

	// 初始化调度器并注册清理任务
	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, manager); err != nil {
		return nil, fmt.Errorf("register cron jobs: %w", err)
	}

	sched.Start()

	if !config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	gin.DefaultWriter = log.NewGinWriter(logger, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(logger, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.Limit),
		middleware.CircuitBreakerMiddleware(config.Breaker),
		middleware.AuthMiddleware(&config.Auth),
		middleware.StorageMiddleware(manager),
		middleware.SchedulerMiddleware(sched),
	)

	apiGroup := engine.Group("/api/v1")
	router.RegisterAPIRoutes(apiGroup)

	if config.Metrics.Enabled {
		if err := metrics.StartMetricsServer(config.Metrics, engine); err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
	}

	return &App{
		Engine:   engine,
		config:   config,
		manager:  manager,
		sched:    sched,
		recorder: recorder,
	}, nil
}

// Run 启动HTTP服务并阻塞直到收到退出信号, 随后按依赖逆序关停各组件.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(contextPkg.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	logger := log.Logger()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := contextPkg.WithTimeout(contextPkg.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	a.shutdown()

	return err
}

// shutdown 按依赖逆序关停: 调度器 -> 审计 -> 追踪 -> 存储.
func (a *App) shutdown() {
	logger := log.Logger()

	if err := a.sched.Stop(); err != nil {
		logger.Warn().Err(err).Msg("failed to stop scheduler")
	}

	if err := a.recorder.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close audit recorder")
	}

	shutdownCtx, cancel := contextPkg.WithTimeout(contextPkg.Background(), shutdownTimeout)
	defer cancel()

	if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to shutdown tracer")
	}

	if err := a.manager.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close storage manager")
	}

	logger.Info().Msg("server stopped")
}
