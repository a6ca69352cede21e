package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/noah-isme/institute-ledger-api/api/swagger"
	"github.com/noah-isme/institute-ledger-api/internal/handler"
	"github.com/noah-isme/institute-ledger-api/internal/ledger"
	"github.com/noah-isme/institute-ledger-api/internal/repository"
	"github.com/noah-isme/institute-ledger-api/internal/service"
	"github.com/noah-isme/institute-ledger-api/pkg/cache"
	"github.com/noah-isme/institute-ledger-api/pkg/config"
	"github.com/noah-isme/institute-ledger-api/pkg/database"
	"github.com/noah-isme/institute-ledger-api/pkg/jobs"
	"github.com/noah-isme/institute-ledger-api/pkg/logger"
)

// @title Institute Ledger API
// @version 1.0.0
// @description Tuition, rental and commission ledger with monthly financial reports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var (
		cacheRepo service.CacheRepository
		cachePing handler.Pinger
	)
	if cfg.Reports.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("report cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer client.Close()
			redisCache := repository.NewCacheRepository(client, logr)
			cacheRepo = redisCache
			cachePing = handler.PingFunc(redisCache.Ping)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)

	var events *service.NotificationService
	if cfg.Notifications.Enabled {
		events = service.NewNotificationService(nil, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: time.Second,
		}, logr)
		events.Start(ctx)
		defer events.Stop()
	}

	validate := validator.New()
	loc := cfg.Ledger.Location

	persons := repository.NewPersonRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	payments := repository.NewPaymentRepository(db)
	ledgerStore := repository.NewLedgerRepository(db)

	ledgerCfg := service.LedgerServiceConfig{ConflictRetries: cfg.Ledger.ConflictRetries, Location: loc}
	svcs := services{
		auth: service.NewAuthService(persons, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			Issuer:            "institute-ledger",
		}),
		persons: service.NewPersonService(persons, loc, validate, logr),
		courses: service.NewCourseService(courses, persons, validate, logr),
		enrollments: service.NewEnrollmentService(enrollments, courses, persons, ledgerStore, cacheSvc, events, metrics, service.EnrollmentServiceConfig{
			Pricing:         ledger.Pricing{PaidInFullMultiplier: cfg.Ledger.PaidInFullMultiplier},
			ConflictRetries: cfg.Ledger.ConflictRetries,
			Location:        loc,
		}, validate, logr),
		rentals:     service.NewRentalService(courses, payments, ledgerStore, cacheSvc, events, metrics, ledgerCfg, validate, logr),
		commissions: service.NewCommissionService(courses, payments, ledgerStore, cacheSvc, events, metrics, ledgerCfg, validate, logr),
		payments:    service.NewPaymentService(payments, ledgerStore, cacheSvc, events, metrics, ledgerCfg, validate, logr),
		reports: service.NewReportService(payments, cacheSvc, metrics, service.ReportServiceConfig{
			CacheTTL: cfg.Reports.CacheTTL,
			Location: loc,
		}, logr),
		metrics: metrics,
		store:   db,
		cache:   cachePing,
	}

	if cacheSvc.Enabled() && cfg.Reports.WarmSchedule != "" {
		scheduler := cron.New(cron.WithLocation(loc))
		if _, err := scheduler.AddFunc(cfg.Reports.WarmSchedule, warmReportsJob(ctx, svcs.reports, metrics)); err != nil {
			logr.Warn("invalid report warm schedule", zap.String("schedule", cfg.Reports.WarmSchedule), zap.Error(err))
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	r := newRouter(cfg, logr, svcs)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
