package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/auth"
	"github.com/confera/backend/internal/authz"
	"github.com/confera/backend/internal/events"
	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/internal/notifications"
	"github.com/confera/backend/internal/organizations"
	"github.com/confera/backend/internal/papers"
	"github.com/confera/backend/internal/timeline"
	"github.com/confera/backend/pkg/database"
	"github.com/confera/backend/pkg/queue"
	redisclient "github.com/confera/backend/pkg/redis"
	"github.com/confera/backend/pkg/response"
	"github.com/confera/backend/pkg/storage"
)

func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}

func main() {
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// Redis backs the public timeline cache and the notification queue.
	// The API degrades to direct DB reads and no emails without it.
	var (
		jobQueue      *queue.Queue
		timelineCache *timeline.Cache
	)
	redisCli, err := redisclient.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, caching and notifications disabled", zap.Error(err))
	} else {
		defer redisCli.Close()
		jobQueue = queue.NewQueue(redisCli.Client, logger)
		timelineCache = timeline.NewCache(redisCli.Client, logger)
	}

	var s3Store *storage.S3
	if cfg.AWS.Region != "" {
		s3Store, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ManuscriptsBucket:    cfg.AWS.ManuscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("S3 unavailable, manuscript endpoints disabled", zap.Error(err))
			s3Store = nil
		}
	} else {
		logger.Info("AWS_REGION not set, manuscript endpoints disabled")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	authRepo := auth.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	timelineRepo := timeline.NewRepository(pool)
	paperRepo := papers.NewRepository(pool)
	notifRepo := notifications.NewRepository(pool)

	systemOrgID := uuid.Nil
	if sysOrg, err := orgRepo.GetBySlug(ctx, models.SystemOrgSlug); err != nil {
		logger.Warn("system organization lookup failed", zap.Error(err))
	} else if sysOrg != nil {
		systemOrgID = sysOrg.ID
	}
	gate := authz.NewGate(orgRepo, eventRepo, paperRepo, systemOrgID, logger)

	notifService := notifications.NewService(notifRepo, jobQueue, logger)

	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	orgHandler := organizations.NewHandler(orgRepo)
	eventHandler := events.NewHandler(eventRepo, gate)
	timelineHandler := timeline.NewHandler(timelineRepo, gate, timelineCache, logger)
	paperHandler := papers.NewHandler(paperRepo, gate, notifService, s3Store, logger)
	notifHandler := notifications.NewHandler(notifRepo, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.Get)
		api.GET("/events/slug/:slug", eventHandler.GetBySlug)
		api.GET("/events/:id/timeline", timelineHandler.ListPublic)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(jwtService))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/users", middleware.RequireRole(string(models.RoleAdmin)), authHandler.List)

		protected.POST("/organizations", orgHandler.Create)
		protected.GET("/organizations", orgHandler.ListMine)
		protected.GET("/organizations/:id", orgHandler.Get)
		protected.GET("/organizations/:id/members", orgHandler.ListMembers)
		protected.PUT("/organizations/:id/members", authz.RequireOrgAccess(gate), orgHandler.UpsertMember)
		protected.DELETE("/organizations/:id/members/:userId", authz.RequireOrgAccess(gate), orgHandler.RemoveMember)

		protected.POST("/events", eventHandler.Create)
		protected.PATCH("/events/:id", authz.RequireEventAccess(gate, eventRepo), eventHandler.Update)
		protected.DELETE("/events/:id", authz.RequireEventAccess(gate, eventRepo), eventHandler.Delete)
		protected.GET("/events/:id/areas", eventHandler.ListAreas)
		protected.POST("/events/:id/areas", authz.RequireEventAccess(gate, eventRepo), eventHandler.CreateArea)
		protected.DELETE("/events/:id/areas/:areaId", authz.RequireEventAccess(gate, eventRepo), eventHandler.DeleteArea)
		protected.GET("/events/:id/paper-types", eventHandler.ListPaperTypes)
		protected.POST("/events/:id/paper-types", authz.RequireEventAccess(gate, eventRepo), eventHandler.CreatePaperType)
		protected.DELETE("/events/:id/paper-types/:typeId", authz.RequireEventAccess(gate, eventRepo), eventHandler.DeletePaperType)
		protected.GET("/events/:id/notifications", authz.RequireEventAccess(gate, eventRepo), notifHandler.ListByEvent)

		protected.GET("/timeline/admin", timelineHandler.ListAdmin)
		protected.POST("/timeline", timelineHandler.Create)
		protected.POST("/timeline/:id/move", timelineHandler.Move)
		protected.PATCH("/timeline/:id", timelineHandler.Update)
		protected.DELETE("/timeline/:id", timelineHandler.Delete)

		protected.POST("/papers", paperHandler.Submit)
		protected.GET("/events/:id/papers", paperHandler.ListByEvent)
		protected.PUT("/papers/bulk-status", paperHandler.BulkStatus)
		protected.GET("/papers/:id", paperHandler.Get)
		protected.PATCH("/papers/:id", paperHandler.Update)
		protected.DELETE("/papers/:id", paperHandler.Withdraw)
		protected.POST("/papers/:id/status", paperHandler.Transition)
		protected.GET("/papers/:id/history", paperHandler.History)
		protected.PUT("/papers/:id/authors", paperHandler.ReplaceAuthors)
		protected.POST("/papers/:id/upload-url", paperHandler.UploadURL)
		protected.POST("/papers/:id/upload", paperHandler.Upload)
		protected.GET("/papers/:id/download-url", paperHandler.DownloadURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
