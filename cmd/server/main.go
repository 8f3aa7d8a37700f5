package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"accountdesk/backend/internal/auth"
	jwtpkg "accountdesk/backend/internal/auth/jwt"
	"accountdesk/backend/internal/cache"
	"accountdesk/backend/internal/config"
	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/health"
	"accountdesk/backend/internal/logger"
	"accountdesk/backend/internal/middleware"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/pool"
	"accountdesk/backend/internal/service"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/filesystem"
	"accountdesk/backend/internal/storage/hybrid"
	redisstore "accountdesk/backend/internal/storage/redis"
	sqlstore "accountdesk/backend/internal/storage/sql"
	httptransport "accountdesk/backend/internal/transport/http"
	"accountdesk/backend/internal/websocket"
)

const version = "0.3.0"

// main 启动账号管理后台的 HTTP 服务
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting accountdesk server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server exited cleanly")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redisstore.Client
	if cfg.Redis.Address != "" {
		client, err := redisstore.New(&cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("initialize redis: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", zap.Error(err))
			}
		}()
		redisClient = client
	}

	// 初始化存储层
	backend, err := newBackend(cfg, log, redisClient)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	store := storage.NewStore(backend)
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)
	if redisClient != nil {
		healthChecker.AddReadinessPing("redis", redisClient.Ping)
	}

	// 变更通知：协程池异步分发给 WebSocket 与指标
	workers := pool.NewWorkerPool(cfg.Notifier.Workers, cfg.Notifier.QueueSize, log)
	sinks := []service.Notifier{service.NotifierFunc(func(event service.ChangeEvent) {
		switch event.Type {
		case service.ChangeCollection:
			metrics.RecordMutation(event.Collection, event.Op)
		case service.ChangeDirectory:
			metrics.RecordCollectionCreated()
		}
	})}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(cfg.CORS.AllowedOrigins, log, metrics)
		sinks = append(sinks, hub)
	}
	notifier := service.NewAsyncNotifier(workers, log, sinks...)

	directory := service.NewDirectory(store, service.DirectoryConfig{
		ServiceAccounts: cfg.Collections.ServiceAccounts,
		TempEmails:      cfg.Collections.TempEmails,
	}, notifier, log)
	if err := directory.Ensure(ctx, cfg.Collections.ServiceAccounts, cfg.Collections.TempEmails); err != nil {
		return fmt.Errorf("initialize collections: %w", err)
	}

	// 初始化认证服务
	revocations, localCache := newRevocations(cfg, log, redisClient)

	credentials, err := newCredentials(cfg, log)
	if err != nil {
		return err
	}
	tokens := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionExpiry)
	authService := auth.NewService(credentials, tokens, revocations, log)

	log.Info("session configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("session_expiry", cfg.JWT.SessionExpiry),
		zap.Bool("cookie_secure", cfg.JWT.CookieSecure),
	)

	loginLimiter := middleware.NewRateLimiter("login", cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst, metrics)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		AuthService:     authService,
		ServiceAccounts: service.NewRecords[domain.ServiceAccountRecord](store, notifier, log),
		TempEmails:      service.NewRecords[domain.TempEmailRecord](store, notifier, log),
		Directory:       directory,
		Health:          healthChecker,
		Metrics:         metrics,
		LoginLimiter:    loginLimiter,
		WebSocketHub:    hub,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	workers.Start(groupCtx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	if hub != nil {
		group.Go(func() error {
			log.Info("starting WebSocket hub")
			return hub.Run(groupCtx)
		})
	}

	if localCache != nil {
		group.Go(func() error {
			return localCache.Run(groupCtx, time.Minute)
		})
	}

	group.Go(func() error {
		return loginLimiter.Run(groupCtx, 10*time.Minute)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newBackend 根据配置选择集合存储后端，数据库后端在配置了 Redis 时加一层缓存
func newBackend(cfg *config.Config, log *zap.Logger, redisClient *redisstore.Client) (storage.Backend, error) {
	switch cfg.Storage.Driver {
	case "postgres", "mysql":
		store, err := sqlstore.NewStore(
			cfg.Storage.Driver,
			cfg.Storage.DSN,
			cfg.Storage.MaxOpenConns,
			cfg.Storage.MaxIdleConns,
			cfg.Storage.ConnMaxLifetime,
		)
		if err != nil {
			return nil, err
		}
		log.Info("using database storage", zap.String("driver", cfg.Storage.Driver))
		if redisClient != nil {
			log.Info("caching collections in redis")
			return hybrid.NewStore(store, redisstore.NewDocumentCache(redisClient), 5*time.Minute, log), nil
		}
		return store, nil
	default:
		store, err := filesystem.NewStore(
			cfg.Storage.DataDir,
			filesystem.WithLogger(log),
			filesystem.WithLockTimeout(cfg.Storage.LockTimeout),
		)
		if err != nil {
			return nil, err
		}
		log.Info("using filesystem storage", zap.String("data_dir", store.BasePath()))
		return store, nil
	}
}

// newRevocations 配置了 Redis 时使用 Redis，否则使用进程内缓存
//
// 返回的 LocalCache 非空时需要由调用方运行清理任务。
func newRevocations(cfg *config.Config, log *zap.Logger, redisClient *redisstore.Client) (auth.RevocationStore, *cache.LocalCache) {
	if redisClient != nil {
		return redisstore.NewSessionRevocations(redisClient), nil
	}

	local := cache.NewLocalCache(10000, cfg.JWT.SessionExpiry)
	log.Info("using in-process session revocation list")
	return cache.NewSessionRevocations(local), local
}

// newCredentials 构造操作员凭据，未配置哈希时在启动时哈希明文密码
func newCredentials(cfg *config.Config, log *zap.Logger) (*auth.StaticCredentials, error) {
	hash := cfg.Auth.PasswordHash
	if hash == "" {
		var err error
		hash, err = auth.HashPassword(cfg.Auth.Password)
		if err != nil {
			return nil, fmt.Errorf("hash operator password: %w", err)
		}
		log.Warn("operator password configured in plain text, prefer ACCOUNTDESK_AUTH_PASSWORD_HASH")
	}
	return auth.NewStaticCredentials(cfg.Auth.Username, hash), nil
}
