package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"accountdesk/backend/internal/monitoring"
)

// RateLimiter 按客户端 IP 划分的令牌桶限流器
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	metrics *monitoring.Metrics

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 创建限流器
//
// 参数:
//   - name: 指标标签中的限流器名称
//   - perMinute: 每分钟补充的令牌数
//   - burst: 桶容量
func NewRateLimiter(name string, perMinute, burst int, metrics *monitoring.Metrics) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		metrics:  metrics,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow 判断该客户端本次请求是否放行
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware 超出限额时返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(time.Duration(float64(time.Second) / float64(rl.limit)).Seconds()))

	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock(rl.name)
			}
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// Run 定期清理长时间未出现的客户端
func (rl *RateLimiter) Run(ctx context.Context, idle time.Duration) error {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.evictIdle(idle)
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}
