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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-timetable-api/api/swagger"
	"github.com/noah-isme/uni-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
)

// @title University Timetable API
// @version 1.0.0
// @description Conflict detection, span commits and common availability for university timetables
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	scheduledClasses := repository.NewScheduledClassRepository(db)
	teachers := repository.NewTeacherRepository(db)
	rooms := repository.NewRoomRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr, redisClient != nil && cfg.Availability.CacheEnabled)
	availabilityCache := service.NewAvailabilityCache(cacheSvc, cfg.Availability.CacheTTL, logr)

	cleanupWorker := service.NewSpanCleanupWorker(scheduledClasses, availabilityCache, metricsSvc, logr)
	cleanupQueue := jobs.NewQueue("span-cleanup", jobs.QueueConfig{
		Workers:    cfg.SpanCleanup.Workers,
		MaxRetries: cfg.SpanCleanup.MaxRetries,
		RetryDelay: cfg.SpanCleanup.RetryDelay,
		DeadLetter: cleanupWorker.DeadLetter,
		Logger:     logr,
	})
	cleanupQueue.Handle(service.JobTypeSpanCleanup, cleanupWorker.Handle)
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	conflicts := service.NewConflictValidator(teachers, rooms, scheduledClasses, metricsSvc, logr)
	electives := service.NewElectiveValidator(conflicts, logr)
	spans := service.NewSpanCoordinator(conflicts, electives, scheduledClasses, cleanupQueue, availabilityCache, metricsSvc, logr)
	availability := service.NewAvailabilityService(teachers, scheduledClasses, availabilityCache, service.AvailabilityConfig{
		WorkingDays: cfg.Schedule.WorkingDays,
		SlotsPerDay: cfg.Schedule.SlotsPerDay,
	}, metricsSvc, logr)

	schedulingSvc := service.NewSchedulingService(conflicts, electives, spans, availability, validate, logr)
	scheduledClassSvc := service.NewScheduledClassService(scheduledClasses, conflicts, electives, availabilityCache, validate, logr)

	schedulingHandler := handler.NewSchedulingHandler(schedulingSvc)
	scheduledClassHandler := handler.NewScheduledClassHandler(scheduledClassSvc)
	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	scheduling := api.Group("/scheduling")
	scheduling.POST("/validate", schedulingHandler.Validate)
	scheduling.POST("/validate-elective", schedulingHandler.ValidateElective)
	scheduling.POST("/spans", schedulingHandler.CommitSpan)
	scheduling.POST("/availability", schedulingHandler.FindAvailability)

	classes := api.Group("/scheduled-classes")
	classes.GET("", scheduledClassHandler.List)
	classes.POST("", scheduledClassHandler.Create)
	classes.GET("/:id", scheduledClassHandler.Get)
	classes.PUT("/:id", scheduledClassHandler.Update)
	classes.DELETE("/:id", scheduledClassHandler.Cancel)
	api.GET("/spans/:id", scheduledClassHandler.GetSpan)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
