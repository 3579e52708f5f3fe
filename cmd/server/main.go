// Package main runs the live stream signaling server with WebSocket
// coordination and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chapelcast/backend/config"
	"github.com/chapelcast/backend/internal/chat"
	"github.com/chapelcast/backend/internal/middleware"
	"github.com/chapelcast/backend/internal/realtime"
	"github.com/chapelcast/backend/internal/signaling"
	"github.com/chapelcast/backend/internal/stream"
	"github.com/chapelcast/backend/pkg/redis"
	"github.com/chapelcast/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Redis is optional: cross-instance fan-out for chat and lifecycle
	// announcements. Unset REDIS_ADDR runs fully instance-local.
	var pub realtime.Publisher
	var sub realtime.Subscriber
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		bus := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = bus, bus
	}

	hub := realtime.NewHub(logger, pub, sub)
	defer hub.Close()

	relay := signaling.New(hub, logger)
	chatSvc := chat.NewService(hub, logger)
	coordinator := stream.NewCoordinator(hub, relay, chatSvc, stream.Options{
		GracePeriod:    cfg.Stream.GracePeriod,
		TakeoverPolicy: cfg.Stream.TakeoverPolicy,
	}, logger)
	hub.SetDispatcher(coordinator)

	streamHandler := stream.NewHandler(coordinator)
	origins := middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/stream/status", streamHandler.GetStatus)
	router.GET("/stream/viewers", streamHandler.GetViewerCount)
	router.GET("/ws", realtime.ServeWs(hub, logger, origins))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.Duration("grace_period", cfg.Stream.GracePeriod),
			zap.String("takeover_policy", cfg.Stream.TakeoverPolicy),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
