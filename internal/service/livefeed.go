package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/pkg/ws"
)

// TelemetrySource 实时推送所需的遥测查询
type TelemetrySource interface {
	GetTelemetry(ctx context.Context, key string, minutes int) (*models.TelemetrySeries, error)
}

// Publisher 订阅关系与推送
type Publisher interface {
	Keys() []string
	BroadcastToSubscribers(key, msgType string, data interface{})
}

var _ Publisher = (*ws.Hub)(nil)

// LiveFeed 定时为已订阅的车辆推送最近遥测
type LiveFeed struct {
	logger   *zap.Logger
	source   TelemetrySource
	hub      Publisher
	interval time.Duration
	minutes  int

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewLiveFeed 创建实时推送服务
func NewLiveFeed(logger *zap.Logger, source TelemetrySource, hub Publisher, interval time.Duration, minutes int) *LiveFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if minutes <= 0 {
		minutes = 30
	}
	return &LiveFeed{
		logger:   logger,
		source:   source,
		hub:      hub,
		interval: interval,
		minutes:  minutes,
	}
}

// Start 启动推送循环
func (f *LiveFeed) Start(ctx context.Context) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		f.logger.Info("Live feed already running, skipping start")
		return
	}
	// 重新初始化 stopCh（防止重复启动问题）
	f.stopCh = make(chan struct{})
	f.running = true
	f.mu.Unlock()

	f.wg.Add(1)
	go f.pollLoop(ctx)
	f.logger.Info("Live feed started", zap.Duration("interval", f.interval), zap.Int("minutes", f.minutes))
}

// Stop 停止推送循环
func (f *LiveFeed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	close(f.stopCh)
	f.wg.Wait()
	f.logger.Info("Live feed stopped")
}

func (f *LiveFeed) pollLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.publishAll(ctx)
		}
	}
}

// publishAll 逐个订阅键查询并推送；单个键失败不影响其他键
func (f *LiveFeed) publishAll(ctx context.Context) {
	for _, key := range f.hub.Keys() {
		series, err := f.source.GetTelemetry(ctx, key, f.minutes)
		if err != nil {
			f.logger.Error("Failed to fetch live telemetry", zap.String("key", key), zap.Error(err))
			f.hub.BroadcastToSubscribers(key, ws.MsgTypeError, "telemetry unavailable")
			continue
		}
		f.hub.BroadcastToSubscribers(key, ws.MsgTypeTelemetry, series)
	}
}
