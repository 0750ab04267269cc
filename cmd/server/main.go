package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/dtcinsights/internal/agent"
	"github.com/langchou/dtcinsights/internal/api/gemini"
	"github.com/langchou/dtcinsights/internal/api/handlers"
	"github.com/langchou/dtcinsights/internal/config"
	"github.com/langchou/dtcinsights/internal/kb"
	"github.com/langchou/dtcinsights/internal/metrics"
	"github.com/langchou/dtcinsights/internal/repository"
	"github.com/langchou/dtcinsights/internal/service"
	"github.com/langchou/dtcinsights/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting DTC Insights", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL, repository.Options{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	}, logger, m)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 开发环境建表
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")
	}

	faults := service.NewFaultService(logger, repository.NewStore(db), m)

	// 对话助手；未配置密钥时 /api/chat 返回 503
	var model agent.Model
	if cfg.GeminiAPIKey != "" {
		model = gemini.NewClient(cfg.GeminiHost, cfg.GeminiModel, cfg.GeminiAPIKey)
		logger.Info("Assistant enabled", zap.String("model", cfg.GeminiModel))
	} else {
		logger.Warn("GEMINI_API_KEY not set, assistant disabled")
	}
	assistant := agent.New(logger, model, faults, cfg.AgentMaxRounds)

	base, err := kb.Load()
	if err != nil {
		logger.Fatal("Failed to load severity knowledge base", zap.Error(err))
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 实时推送订阅车辆的遥测
	feed := service.NewLiveFeed(logger, faults, wsHub, cfg.LiveFeedInterval, cfg.LiveFeedMinutes)
	feed.Start(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, faults, assistant, base, wsHub, m, handlers.Defaults{
		FaultHours:       cfg.DefaultFaultHours,
		TelemetryMinutes: cfg.DefaultTelemetryMinutes,
		SummaryDays:      cfg.DefaultSummaryDays,
	})

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(handlers.AccessLog(logger))
	router.Use(metrics.GinMiddleware(m))
	router.Use(handlers.CORS(cfg.CORSOrigin))

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止服务
	feed.Stop()
	wsHub.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
