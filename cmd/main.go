package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/app/server"
	"folio/internal/app/worker"
	"folio/internal/config"
	"folio/internal/core/services"
	"folio/internal/platform/logger"
	"folio/internal/platform/telemetry"
	"folio/internal/plugins/mailer"
	"folio/internal/plugins/postgres"
	redisPlugin "folio/internal/plugins/redis"
	"folio/pkg/middleware"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	emailRepo := postgres.NewEmailRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	eventBus := redisPlugin.NewRedisEventBus(rdb, log)
	smtp := mailer.NewSMTPMailer(cfg.SMTP)

	// Core services
	txManager := postgres.NewTxManager(pdb)
	tokenSvc := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.VisitorTTL, cfg.Auth.AdminTTL)
	authSvc := services.NewAuthService(log, userRepo, tokenSvc, smtp, txManager, cfg.Auth)
	chatSvc := services.NewChatService(log, userRepo, msgRepo, presStore, eventBus, txManager)
	contactSvc := services.NewContactService(log, userRepo, emailRepo, smtp, txManager)

	if err := authSvc.EnsureAdmin(ctx); err != nil {
		log.Error("admin bootstrap failed", "err", err)
		return
	}

	// Fan-out worker
	wrkr := worker.NewFanoutWorker(log, eventBus, cfg.Worker.EventGroup)
	if err := wrkr.Run(ctx); err != nil {
		log.Error("worker start failed", "err", err)
		return
	}

	// Server
	limiter := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiter.Stop()
	srv := server.NewServer(cfg.Service, log, tokenSvc, authSvc, chatSvc, contactSvc, limiter)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped", "err", err)
	}
}
