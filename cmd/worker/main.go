package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/notifications"
	"github.com/confera/backend/internal/worker"
	"github.com/confera/backend/pkg/database"
	"github.com/confera/backend/pkg/queue"
	redisclient "github.com/confera/backend/pkg/redis"
)

func main() {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zapCfg.Build()
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

	redisCli, err := redisclient.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisCli.Close()

	var sender worker.Sender
	if cfg.Email.SMTPHost != "" {
		sender = worker.NewSMTPSender(cfg.Email)
		logger.Info("SMTP sender configured", zap.String("host", cfg.Email.SMTPHost))
	} else {
		sender = worker.NewLogSender(logger)
		logger.Warn("SMTP_HOST not set, emails will be logged only")
	}

	jobQueue := queue.NewQueue(redisCli.Client, logger)
	notifRepo := notifications.NewRepository(pool)
	processor := worker.NewProcessor(jobQueue, notifRepo, sender, logger)

	go processor.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker")
	cancel()
}
