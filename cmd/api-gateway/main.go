package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/class-scheduler-api/api/swagger"
	"github.com/noah-isme/class-scheduler-api/internal/handler"
	"github.com/noah-isme/class-scheduler-api/internal/middleware"
	"github.com/noah-isme/class-scheduler-api/internal/repository"
	"github.com/noah-isme/class-scheduler-api/internal/service"
	"github.com/noah-isme/class-scheduler-api/pkg/cache"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
	"github.com/noah-isme/class-scheduler-api/pkg/database"
	"github.com/noah-isme/class-scheduler-api/pkg/lock"
	"github.com/noah-isme/class-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/class-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/class-scheduler-api/pkg/middleware/requestid"
	"github.com/noah-isme/class-scheduler-api/pkg/storage"
)

// @title Class Scheduler API
// @version 0.1.0
// @description Batch registration admission service for class scheduling
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: without it the async path and the progress notifier
	// are disabled, synchronous batches still work.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, async processing disabled", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// Exports outlive their signed links by at most one sweep interval.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			removed, err := exportStore.CleanupOlderThan(cfg.Exports.SignedURLTTL)
			if err != nil {
				logr.Warn("export cleanup", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}()

	students := repository.NewStudentRepository(db)
	instructors := repository.NewInstructorRepository(db)
	classTypes := repository.NewClassTypeRepository(db)
	registrations := repository.NewRegistrationRepository(db)

	metrics := service.NewMetricsService()
	resolver := service.NewResolverService(students, instructors, classTypes, logr)
	admission := service.NewAdmissionService(registrations, cfg.Scheduling, logr)

	batchOpts := []service.BatchServiceOption{
		service.WithBatchMetrics(metrics),
		service.WithStoreHealth(db),
	}
	if cfg.Notifier.Enabled && redisClient != nil {
		batchOpts = append(batchOpts, service.WithProgressNotifier(
			service.NewRedisNotifier(redisClient, cfg.Notifier.ChannelPrefix, logr)))
	}
	batches := service.NewBatchService(resolver, admission, registrations,
		lock.NewKeyedMutex(), cfg.Batch, cfg.Scheduling, logr, batchOpts...)

	var asyncBatches *service.AsyncBatchService
	if redisClient != nil {
		resultCache := repository.NewCacheRepository(redisClient, logr)
		asyncBatches = service.NewAsyncBatchService(batches, resultCache, cfg.Batch, logr)
		asyncBatches.Start(context.Background())
		defer asyncBatches.Stop()
	}

	reports := service.NewReportService(registrations, exportStore, signer, logr,
		service.WithReportMetrics(metrics))
	masterData := service.NewMasterDataService(students, instructors, classTypes, logr)
	registrationViews := service.NewRegistrationService(registrations, logr)

	validate := validator.New()
	batchHandler := handler.NewBatchHandler(batches, asyncBatches, uploadStore, cfg.Uploads.MaxFileSizeBytes, validate, logr)
	registrationHandler := handler.NewRegistrationHandler(registrationViews)
	masterDataHandler := handler.NewMasterDataHandler(masterData)
	reportHandler := handler.NewReportHandler(reports)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/registrations/batch", batchHandler.Submit)
		api.GET("/registrations/batch/:id/result", batchHandler.Result)
		api.GET("/registrations", registrationHandler.List)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.GET("/students", masterDataHandler.ListStudents)
		api.GET("/instructors", masterDataHandler.ListInstructors)
		api.GET("/class-types", masterDataHandler.ListClassTypes)
		api.GET("/reports/daily", reportHandler.Daily)
		api.GET("/reports/daily/export", reportHandler.ExportDaily)
		api.GET("/reports/download/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
}
