// Package main runs the invitations HTTP server with the live RSVP feed and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wiktoriasw/Invitations/config"
	"github.com/wiktoriasw/Invitations/internal/auth"
	"github.com/wiktoriasw/Invitations/internal/events"
	"github.com/wiktoriasw/Invitations/internal/guests"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/internal/notify"
	"github.com/wiktoriasw/Invitations/internal/realtime"
	"github.com/wiktoriasw/Invitations/internal/users"
	"github.com/wiktoriasw/Invitations/pkg/database"
	"github.com/wiktoriasw/Invitations/pkg/queue"
	"github.com/wiktoriasw/Invitations/pkg/ratelimit"
	"github.com/wiktoriasw/Invitations/pkg/redis"
	"github.com/wiktoriasw/Invitations/pkg/response"
	"github.com/wiktoriasw/Invitations/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis backs the reset-email queue, rate limiting and the cross-instance live feed.
	// Without it the server still serves the API on a single instance.
	var (
		rdb      *redis.Client
		notifier auth.ResetNotifier
		limiter  middleware.Limiter
		hub      *realtime.Hub
	)
	rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis disabled", zap.Error(err))
		hub = realtime.NewHub(logger, nil, nil)
	} else {
		defer rdb.Close()
		jobQueue := queue.NewQueue(rdb.Client, logger)
		notifier = notify.NewResetMailer(jobQueue, cfg.Reset.LinkBaseURL, logger)
		limiter = ratelimit.New(rdb.Client, "invitations:ratelimit", cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	}

	var photos events.PhotoStore
	var photoRemover users.PhotoRemover
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PhotosBucket:         cfg.AWS.PhotosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			photos = s3Client
			photoRemover = s3Client
		}
	}

	// Identity
	authRepo := auth.NewRepository(pool)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TokenTTL())
	authService := auth.NewService(authRepo, jwtService, cfg.Reset.TokenTTL(), notifier, logger)
	authHandler := auth.NewHandler(authService, logger)

	// Users
	userService := users.NewService(authRepo, photoRemover, logger)
	userHandler := users.NewHandler(userService, logger)

	// Events and guests
	guestRepo := guests.NewRepository(pool)
	eventService := events.NewService(events.NewRepository(pool), guestRepo, photos, logger)
	eventHandler := events.NewHandler(eventService, logger)
	guestService := guests.NewService(guestRepo, hub, logger)
	guestHandler := guests.NewHandler(guestService, logger)

	origins := middleware.NewOriginPolicy(cfg.Server.CORSAllowedOrigins)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(origins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		if err := pool.Ping(c.Request.Context()); err != nil {
			status["status"], status["database"] = "degraded", err.Error()
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Check(c.Request.Context()); err != nil {
				status["status"], status["redis"] = "degraded", err.Error()
			}
		}
		response.OK(c, status)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	router.POST("/users", userHandler.Create)
	router.POST("/token", middleware.RateLimit(limiter, "login", logger), authHandler.Login)
	router.POST("/forget_password", middleware.RateLimit(limiter, "forget_password", logger), authHandler.ForgotPassword)
	router.POST("/reset_password_with_token", authHandler.ResetPassword)
	router.GET("/events/public", eventHandler.ListPublic)
	router.GET("/events/:uuid", eventHandler.Get)
	router.GET("/events/:uuid/background_photo", eventHandler.Photo)
	router.GET("/guests/:uuid", guestHandler.Get)
	router.POST("/guests/:uuid/answer", guestHandler.Answer)
	router.POST("/guests/:uuid/companion_answer", guestHandler.CompanionAnswer)

	// Live RSVP feed (token in query; browsers cannot set headers on the handshake)
	router.GET("/events/:uuid/live", realtime.ServeLive(hub, authService, eventService, origins, logger))

	// Authenticated
	api := router.Group("")
	api.Use(middleware.Authenticate(authService))
	{
		api.GET("/users/me", authHandler.Me)
		api.POST("/change_password", authHandler.ChangePassword)
		api.DELETE("/users/:uuid", userHandler.Delete)

		api.POST("/events", eventHandler.Create)
		api.GET("/events", eventHandler.ListMine)
		api.PUT("/events/:uuid", eventHandler.Modify)
		api.DELETE("/events/:uuid", eventHandler.Delete)
		api.GET("/events/:uuid/guests", eventHandler.Guests)
		api.GET("/events/:uuid/stats", eventHandler.Stats)
		api.POST("/events/:uuid/background_photo", eventHandler.UploadPhoto)
		api.POST("/events/:uuid/background_photo/upload_url", eventHandler.PhotoUploadURL)

		api.POST("/guests", guestHandler.Create)
		api.DELETE("/guests/:uuid", guestHandler.Delete)

		// Admin
		admin := api.Group("", middleware.RequireRole(models.RoleAdmin))
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:uuid", userHandler.Get)
		admin.POST("/users/:uuid/role", userHandler.ChangeRole)
		admin.GET("/guests", guestHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
