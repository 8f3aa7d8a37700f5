package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accountdesk/backend/internal/auth"
	"accountdesk/backend/internal/config"
	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/health"
	"accountdesk/backend/internal/middleware"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/service"
	"accountdesk/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	AuthService     *auth.Service
	ServiceAccounts *service.Records[domain.ServiceAccountRecord]
	TempEmails      *service.Records[domain.TempEmailRecord]
	Directory       *service.Directory
	Health          *health.HealthChecker
	Metrics         *monitoring.Metrics
	LoginLimiter    *middleware.RateLimiter // 为空时不限制登录频率
	WebSocketHub    *websocket.Hub          // 为空时不注册 /ws
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	router.Use(gincors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	sessionAuth := middleware.NewSessionAuth(deps.AuthService, log)
	requireSession := sessionAuth.RequireSession()

	authHandler := NewAuthHandler(deps.AuthService, cfg.JWT.CookieSecure, deps.Metrics, log)
	directoryHandler := NewDirectoryHandler(deps.Directory, deps.Metrics, log)

	pageSize := cfg.Collections.PageSize
	accounts := newFixedCollectionHandler(deps.ServiceAccounts, cfg.Collections.ServiceAccounts, serviceAccountMessages, pageSize, deps.Metrics, log)
	emails := newFixedCollectionHandler(deps.TempEmails, cfg.Collections.TempEmails, tempEmailMessages, pageSize, deps.Metrics, log)
	named := newNamedCollectionHandler(deps.ServiceAccounts, []string{cfg.Collections.TempEmails}, serviceAccountMessages, pageSize, deps.Metrics, log)

	// 健康检查与指标
	router.GET("/health", gin.WrapF(deps.Health.ReadyHandler))
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// ========== Auth Routes ==========
	authRoutes := router.Group("/auth")
	{
		login := []gin.HandlerFunc{authHandler.Login}
		if deps.LoginLimiter != nil {
			login = append([]gin.HandlerFunc{deps.LoginLimiter.Middleware()}, login...)
		}
		authRoutes.POST("/login", login...)
		authRoutes.POST("/logout", requireSession, authHandler.Logout)
		authRoutes.GET("/session", requireSession, authHandler.Session)
	}

	// ========== Collection Routes（全部需要会话） ==========
	collections := router.Group("/collections", requireSession)
	{
		registerCollection(collections.Group("/service-accounts"), accounts)
		registerCollection(collections.Group("/temp-emails"), emails)
		registerCollection(collections.Group("/named/:name"), named)

		collections.GET("/directory", directoryHandler.List)
		collections.POST("/directory", directoryHandler.Create)
	}

	if deps.WebSocketHub != nil && cfg.WebSocket.Enabled {
		router.GET("/ws", requireSession, websocket.HandleWebSocket(deps.WebSocketHub))
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "Not found")
	})

	return router
}

func registerCollection[R domain.Record[R]](group *gin.RouterGroup, h *CollectionHandler[R]) {
	group.GET("", h.List)
	group.POST("", h.Add)
	group.PUT("", h.Update)
	group.DELETE("", h.Delete)
	group.GET("/view", h.View)
	group.PATCH("/:index", h.Patch)
}

func corsConfig(origins []string) gincors.Config {
	cfg := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时不能携带凭证
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			break
		}
	}
	return cfg
}
