package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-hall-api/api/swagger"
	"github.com/noah-isme/exam-hall-api/internal/handler"
	internalmiddleware "github.com/noah-isme/exam-hall-api/internal/middleware"
	"github.com/noah-isme/exam-hall-api/internal/repository"
	"github.com/noah-isme/exam-hall-api/internal/service"
	"github.com/noah-isme/exam-hall-api/pkg/cache"
	"github.com/noah-isme/exam-hall-api/pkg/config"
	"github.com/noah-isme/exam-hall-api/pkg/database"
	"github.com/noah-isme/exam-hall-api/pkg/export"
	"github.com/noah-isme/exam-hall-api/pkg/jobs"
	"github.com/noah-isme/exam-hall-api/pkg/lock"
	"github.com/noah-isme/exam-hall-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-hall-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-hall-api/pkg/middleware/requestid"
	"github.com/noah-isme/exam-hall-api/pkg/notify"
)

// @title Exam Hall API
// @version 1.0.0
// @description Exam scheduling, hall-ticket approval and seating allocation.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and shared lease", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := notify.New(cfg.Notifications, logr)
	if err != nil {
		logr.Warn("notification broker unavailable, notifications are stored only", zap.String("driver", cfg.Notifications.Driver), zap.Error(err))
		publisher = notify.Noop{}
	}
	defer publisher.Close() //nolint:errcheck

	app := build(cfg, db, redisClient, publisher, logr)
	app.queue.Start(ctx)
	defer app.queue.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	router *gin.Engine
	queue  *jobs.Queue
}

func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, publisher notify.Publisher, logr *zap.Logger) *application {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	hallRepo := repository.NewHallRepository(db)
	examRepo := repository.NewExamRepository(db)
	ticketRepo := repository.NewHallTicketRepository(db)
	seatingRepo := repository.NewSeatingRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "exam-hall:")

	worker := service.NewNotificationWorker(notificationRepo, publisher, metrics, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		OnDiscard:  worker.Discard,
		Logger:     logr,
	})

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.HallTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	locker := schedulingLocker(cfg.Scheduler, redisClient, logr)

	hallSvc := service.NewHallService(hallRepo, cacheSvc, validate, logr)
	examSvc := service.NewExamService(service.ExamServiceParams{
		Repo:      examRepo,
		Halls:     hallSvc,
		Locker:    locker,
		Audit:     auditRepo,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, queue, metrics, logr)
	ticketSvc := service.NewHallTicketService(service.HallTicketServiceParams{
		Tickets:   ticketRepo,
		Students:  studentRepo,
		Exams:     examRepo,
		Notifier:  notificationSvc,
		Audit:     auditRepo,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	seatingSvc := service.NewSeatingService(service.SeatingServiceParams{
		Arrangements: seatingRepo,
		Tickets:      ticketRepo,
		Exams:        examRepo,
		Halls:        hallRepo,
		Locker:       locker,
		Audit:        auditRepo,
		Metrics:      metrics,
		CSV:          export.NewCSVExporter(),
		PDF:          export.NewPDFExporter(),
		Validator:    validate,
		Logger:       logr,
	})
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, r.Group(cfg.APIPrefix), handler.Handlers{
		Halls:         handler.NewHallHandler(hallSvc),
		Exams:         handler.NewExamHandler(examSvc),
		Tickets:       handler.NewHallTicketHandler(ticketSvc),
		Seating:       handler.NewSeatingHandler(seatingSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Ops:           handler.NewMetricsHandler(metrics, checks, logr),
	}, authSvc)

	return &application{router: r, queue: queue}
}

func schedulingLocker(cfg config.SchedulerConfig, client *redis.Client, logr *zap.Logger) lock.Locker {
	if !cfg.LockEnabled {
		return lock.Noop{}
	}
	opts := lock.Options{TTL: cfg.LockTTL, Wait: cfg.LockTTL}
	if client != nil {
		logr.Info("scheduling lease enabled", zap.String("backend", "redis"))
		return lock.NewRedis(client, "exam-hall:lock:", opts)
	}
	logr.Info("scheduling lease enabled", zap.String("backend", "local"))
	return lock.NewLocal(opts)
}
