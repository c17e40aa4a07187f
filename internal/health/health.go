package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health      healthcheck.Handler
	blobs       storage.BlobStore
	providerURL string
	logger      *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(blobs storage.BlobStore, providerURL string, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:      healthcheck.NewHandler(),
		blobs:       blobs,
		providerURL: providerURL,
		logger:      logger,
	}

	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 协程数量检查，防止协程泄漏
	hc.health.AddLivenessCheck("goroutine-count", func() error {
		count := runtime.NumGoroutine()
		if count > 1000 {
			return fmt.Errorf("too many goroutines: %d", count)
		}
		return nil
	})

	// 持久化层可读性检查
	hc.health.AddReadinessCheck("storage", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := hc.blobs.Get(ctx, storage.KeyHistory)
		if err != nil && err != storage.ErrBlobNotFound {
			return err
		}
		return nil
	})

	// 服务商可达性检查，异步探测避免每次探针都打远端
	if hc.providerURL != "" {
		hc.health.AddReadinessCheck("mail-provider", healthcheck.Async(
			healthcheck.HTTPGetCheck(hc.providerURL+"/domains", 5*time.Second),
			30*time.Second,
		))
	}
}

// Handler 返回健康检查的 HTTP 处理器
func (hc *HealthChecker) Handler() healthcheck.Handler {
	return hc.health
}
