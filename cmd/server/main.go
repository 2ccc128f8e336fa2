// Package main runs the church backend HTTP server with graceful shutdown.
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

	"github.com/crh-church/backend/config"
	"github.com/crh-church/backend/internal/auth"
	"github.com/crh-church/backend/internal/conference"
	"github.com/crh-church/backend/internal/donations"
	"github.com/crh-church/backend/internal/flutterwave"
	"github.com/crh-church/backend/internal/mailer"
	"github.com/crh-church/backend/internal/meetings"
	"github.com/crh-church/backend/internal/middleware"
	"github.com/crh-church/backend/internal/worker"
	"github.com/crh-church/backend/pkg/database"
	"github.com/crh-church/backend/pkg/jsonstore"
	"github.com/crh-church/backend/pkg/queue"
	"github.com/crh-church/backend/pkg/redis"
	"github.com/crh-church/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Record store: Postgres or flat-file JSON, selected by STORAGE_DRIVER.
	var (
		authRepo     auth.Repository
		donationRepo donations.Repository
		meetingRepo  meetings.Repository
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		authRepo = auth.NewPostgresRepository(pool)
		donationRepo = donations.NewPostgresRepository(pool)
		meetingRepo = meetings.NewPostgresRepository(pool)
	case config.StorageDriverFile:
		store, err := jsonstore.New(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal("jsonstore", zap.Error(err))
		}
		authRepo = auth.NewFileRepository(store)
		donationRepo = donations.NewFileRepository(store)
		meetingRepo = meetings.NewFileRepository(store)
	}
	logger.Info("record store ready", zap.String("driver", cfg.Storage.Driver))

	// Redis is optional: without it invites are recorded but not emailed.
	var jobQueue *queue.Queue
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, invite emails disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			jobQueue = queue.NewQueue(rdb.Client, logger)
		}
	} else {
		logger.Warn("REDIS_ADDR not set, invite emails disabled")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	gateway := flutterwave.NewClient(cfg.Flutterwave.SecretKey, cfg.Flutterwave.BaseURL, logger)
	if !gateway.Configured() {
		logger.Warn("FLW_SECRET_KEY not set, donation endpoints will report unavailable")
	}
	resolver := conference.NewResolver(cfg.Conference.JitsiDomain)

	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	donationService := donations.NewService(donationRepo, gateway, cfg.Server.FrontendOrigin, logger)
	donationHandler := donations.NewHandler(donationService, logger)

	var enqueuer meetings.Enqueuer
	if jobQueue != nil {
		enqueuer = jobQueue
	}
	meetingService := meetings.NewService(meetingRepo, resolver, enqueuer, cfg.Server.FrontendOrigin, logger)
	meetingHandler := meetings.NewHandler(meetingService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Donations: create and verify are public (donors are anonymous),
		// listing is admin only.
		api.POST("/donations", donationHandler.Create)
		api.POST("/donations/verify", donationHandler.Verify)
		api.GET("/donations", middleware.JWT(jwtService), middleware.RequireRole("admin"), donationHandler.List)

		// Meetings: browsing and joining are public, management is admin only.
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/:id", meetingHandler.Get)
		api.GET("/meetings/:id/join", meetingHandler.Join)

		admin := api.Group("/meetings", middleware.JWT(jwtService), middleware.RequireRole("admin"))
		{
			admin.POST("", meetingHandler.Create)
			admin.PATCH("/:id", meetingHandler.Update)
			admin.POST("/:id/cancel", meetingHandler.Cancel)
			admin.POST("/:id/invites", meetingHandler.Invite)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (invitation emails) runs in-process when a queue
	// and mailer are available; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil {
		smtp := mailer.NewSMTP(cfg.Email, logger)
		if smtp.Configured() {
			processor := worker.NewInviteProcessor(smtp, jobQueue, logger)
			go processor.Run(workerCtx)
			logger.Info("invite worker started")
		} else {
			logger.Warn("SMTP_HOST not set, invite emails will stay queued")
		}
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
