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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"soc-assistant/internal/attachment"
	"soc-assistant/internal/cache"
	"soc-assistant/internal/config"
	"soc-assistant/internal/handler"
	"soc-assistant/internal/incident"
	"soc-assistant/internal/middleware"
	"soc-assistant/internal/ollama"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
	"soc-assistant/internal/service"
	"soc-assistant/internal/websocket"
	"soc-assistant/pkg/jwt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

// serve 组装所有组件并运行 HTTP 服务，收到 SIGINT/SIGTERM 后优雅关闭
func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(db); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	// 附件、推理中继和界面事件
	ingestor := newIngestor(cfg.Upload, attachmentRepo)
	streams := relay.NewRegistry()

	hub := websocket.NewHub(redisCache)
	go hub.Run(ctx)

	client := ollama.NewClient(cfg.Ollama)
	streamRelay := relay.New(client, messageRepo, hub, streams, cfg.Ollama.Throttle)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo, redisCache, ingestor, streams)
	sessionService := service.NewSessionService(sessionRepo, messageRepo, attachmentRepo, redisCache, streams, hub)
	chatService := service.NewChatService(sessionService, sessionRepo, messageRepo, ingestor, incident.NewMockSIEM(), streamRelay)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewEngine(handler.Router{
		JWT:         jwtService,
		Blacklist:   redisCache,
		SendLimiter: middleware.NewUserRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateBurst),
		CORS:        middleware.CORSConfigForOrigins(cfg.Server.CORS),
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Session:     handler.NewSessionHandler(sessionService),
		Chat:        handler.NewChatHandler(chatService),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(sqlDB.PingContext),
			"redis":    redisCache,
		}),
		WS: websocket.NewHandler(hub, jwtService, redisCache, cfg.Server.CORS),
	})

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("model", client.Model()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// 创建关闭上下文，设置超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}

// newIngestor 按上传配置创建磁盘附件存储
func newIngestor(cfg config.UploadConfig, records attachment.Recorder) *attachment.Ingestor {
	return attachment.NewIngestor(
		attachment.NewPolicy(cfg.AllowedTypes, cfg.MaxSizeKB),
		attachment.NewDiskStore(cfg.Dir, cfg.Subdir, cfg.MaxSizeKB*attachment.KiB),
		attachment.MockSummarizer{},
		records,
	)
}
