package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/config"
	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/health"
	"github.com/xurst/simple-generator/internal/logger"
	"github.com/xurst/simple-generator/internal/monitoring"
	"github.com/xurst/simple-generator/internal/provider"
	"github.com/xurst/simple-generator/internal/service"
	"github.com/xurst/simple-generator/internal/storage"
	"github.com/xurst/simple-generator/internal/storage/filesystem"
	"github.com/xurst/simple-generator/internal/storage/memory"
	redisstore "github.com/xurst/simple-generator/internal/storage/redis"
	sqlstore "github.com/xurst/simple-generator/internal/storage/sql"
	httptransport "github.com/xurst/simple-generator/internal/transport/http"
	"github.com/xurst/simple-generator/internal/websocket"
)

// main 是生成器后端 HTTP 服务的程序入口。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting simple-generator server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	// 初始化持久化层
	blobs, err := newBlobStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage backend", zap.Error(err))
	}
	defer blobs.Close()

	// 初始化监控指标
	metrics := monitoring.NewMetrics()

	// 初始化邮箱服务商客户端
	mailClient := provider.NewClient(cfg.Provider, log)

	// 初始化服务层
	historyService := service.NewHistoryService(blobs, cfg.History.SweepInterval, log)
	historyService.SetMetrics(metrics)

	inboxService := service.NewInboxService(mailClient, blobs, cfg.Provider.AccountPassword, log)
	inboxService.SetMetrics(metrics)

	generatorService := service.NewGeneratorService()

	// 创建 WebSocket Hub，渲染和通知都通过它推送给 UI
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)

	notify := func(message string, kind domain.NotifyKind) {
		wsHub.BroadcastNotification(message, string(kind))
	}
	render := func() {
		wsHub.BroadcastRender()
	}
	inboxService.SetCallbacks(notify, render)

	// 用户当前的 TTL 配置来源
	ttlConfig := func() domain.TTLConfig {
		return domain.TTLConfig{
			Amount: cfg.History.TTLAmount,
			Unit:   cfg.History.TTLUnit,
		}
	}

	// 恢复上次会话的状态
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := historyService.Load(startupCtx); err != nil {
		log.Warn("failed to load history records, starting empty", zap.Error(err))
	}
	if err := inboxService.Load(startupCtx); err != nil {
		log.Warn("failed to load mail accounts, starting empty", zap.Error(err))
	}
	startupCancel()

	// 启动过期清扫循环
	stopSweep := historyService.Initialize(ttlConfig, render)
	defer stopSweep()

	// 健康检查
	healthChecker := health.NewHealthChecker(blobs, cfg.Provider.BaseURL, log)

	// 创建 HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:    cfg,
		History:   historyService,
		Inbox:     inboxService,
		Generator: generatorService,
		TTLConfig: ttlConfig,
		Notify:    notify,
		Hub:       wsHub,
		Metrics:   metrics,
		Health:    healthChecker,
		Logger:    log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动 WebSocket Hub
	go func() {
		log.Info("starting WebSocket hub")
		wsHub.Run(ctx)
	}()

	// 启动 HTTP 服务器
	go func() {
		log.Info("server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server stopped cleanly")
	}
}

// newBlobStore 按配置选择持久化后端。
func newBlobStore(cfg *config.Config, log *zap.Logger) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		log.Info("using in-memory storage")
		return memory.NewStore(), nil
	case "filesystem":
		log.Info("using filesystem storage", zap.String("path", cfg.Storage.Path))
		return filesystem.NewStore(cfg.Storage.Path)
	case "redis":
		log.Info("using redis storage", zap.String("address", cfg.Redis.Address))
		return redisstore.NewStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	case "sql":
		log.Info("using sql storage")
		return sqlstore.NewStore(cfg.Database)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
