package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/agent"
	"github.com/langchou/dtcinsights/internal/kb"
	"github.com/langchou/dtcinsights/internal/metrics"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/service"
	"github.com/langchou/dtcinsights/pkg/ws"
)

// Diagnostics 处理器依赖的故障查询
type Diagnostics interface {
	ResolveVehicle(ctx context.Context, key string) (*models.ResolvedVehicle, bool, error)
	GetFaults(ctx context.Context, key string, hours int) ([]models.FaultRecord, error)
	GetTelemetry(ctx context.Context, key string, minutes int) (*models.TelemetrySeries, error)
	GetVehicleSummary(ctx context.Context, key string, days int) ([]models.ClassificationResult, error)
	GetCustomerSummary(ctx context.Context, name string, days int) ([]models.ClassificationResult, error)
	GetOverview(ctx context.Context, q models.OverviewQuery) ([]models.OverviewItem, error)
}

// Assistant 对话助手
type Assistant interface {
	Ask(ctx context.Context, q agent.Question) (agent.Output, error)
}

var (
	_ Diagnostics = (*service.FaultService)(nil)
	_ Assistant   = (*agent.Agent)(nil)
)

// Defaults 查询参数缺省时使用的窗口
type Defaults struct {
	FaultHours       int
	TelemetryMinutes int
	SummaryDays      int
}

// Handler HTTP 处理器
type Handler struct {
	logger    *zap.Logger
	diag      Diagnostics
	assistant Assistant
	kb        *kb.Base
	wsHub     *ws.Hub
	metrics   *metrics.Metrics
	defaults  Defaults
	upgrader  websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	diag Diagnostics,
	assistant Assistant,
	base *kb.Base,
	wsHub *ws.Hub,
	m *metrics.Metrics,
	defaults Defaults,
) *Handler {
	return &Handler{
		logger:    logger,
		diag:      diag,
		assistant: assistant,
		kb:        base,
		wsHub:     wsHub,
		metrics:   m,
		defaults:  defaults,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 车辆
		api.GET("/vehicles/:key", h.ResolveVehicle)
		api.GET("/vehicles/:key/dtc", h.GetFaults)
		api.GET("/vehicles/:key/telemetry", h.GetTelemetry)
		api.GET("/vehicles/:key/summary", h.GetVehicleSummary)

		// 客户
		api.GET("/customers/summary", h.GetCustomerSummary)

		// 概览
		api.GET("/overview/dtc-events", h.GetOverview)

		// 知识库
		api.GET("/kb/lookup", h.LookupSeverity)

		// 对话
		api.POST("/chat", h.Chat)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 监控
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}

// queryInt 读取整数查询参数；缺省或非正数时返回 def
// 非法值写入 400 并返回 false
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	if n <= 0 {
		return def, true
	}
	return n, true
}

// fail 按错误类型写入响应
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrRetrieval) {
		status = http.StatusBadGateway
	}
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(status, gin.H{"error": msg})
}
