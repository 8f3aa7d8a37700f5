package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Checker 可被检查健康状态的依赖
type Checker interface {
	Health() error
}

// PingFunc 带上下文的探测函数（如 Redis Ping）
type PingFunc func(ctx context.Context) error

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器，存储后端作为就绪与存活检查
func NewHealthChecker(store Checker, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	hc.health.AddReadinessCheck("storage", hc.logged("storage", store.Health))
	return hc
}

// AddReadinessPing 添加带超时的就绪检查
func (hc *HealthChecker) AddReadinessPing(name string, ping PingFunc) {
	hc.health.AddReadinessCheck(name, healthcheck.Timeout(hc.logged(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ping(ctx)
	}), 3*time.Second))
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

func (hc *HealthChecker) logged(name string, check healthcheck.Check) healthcheck.Check {
	return func() error {
		err := check()
		if err != nil {
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		return err
	}
}
