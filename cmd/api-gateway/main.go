package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-report-api/api/swagger"
	"github.com/noah-isme/attendance-report-api/internal/handler"
	"github.com/noah-isme/attendance-report-api/internal/middleware"
	"github.com/noah-isme/attendance-report-api/internal/models"
	"github.com/noah-isme/attendance-report-api/internal/repository"
	"github.com/noah-isme/attendance-report-api/internal/service"
	"github.com/noah-isme/attendance-report-api/internal/upstream"
	"github.com/noah-isme/attendance-report-api/pkg/cache"
	"github.com/noah-isme/attendance-report-api/pkg/config"
	"github.com/noah-isme/attendance-report-api/pkg/database"
	"github.com/noah-isme/attendance-report-api/pkg/export"
	"github.com/noah-isme/attendance-report-api/pkg/jobs"
	"github.com/noah-isme/attendance-report-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-report-api/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-report-api/pkg/storage"
)

// @title Attendance Report API
// @version 0.1.0
// @description Reporting gateway over the academic attendance platform
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	cacheClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheClient = nil
	}
	cacheRepo := repository.NewCacheRepository(cacheClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheClient != nil)

	upstreamClient, err := upstream.NewClient(cfg.Upstream, logr)
	if err != nil {
		logr.Fatal("failed to build upstream client", zap.Error(err))
	}
	if err := upstreamClient.Login(ctx); err != nil {
		logr.Warn("initial upstream login failed, will retry on demand", zap.Error(err))
	}

	attendanceSvc := service.NewAttendanceService(upstreamClient, cacheSvc, metricsSvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	authed := api.Group("", middleware.JWT(cfg.JWT.Secret))

	var store *storage.LocalStorage
	var signer *storage.SignedURLSigner
	if cfg.Reports.Enabled {
		store, err = storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer = storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	}

	exportSvc := service.NewExportService(attendanceSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewQuotedCSVExporter(), export.NewPDFExporter())

	if cfg.Reports.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck

		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc := service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc)
		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports/:id", reportHandler.Status)
		api.GET("/reports/export/:token", reportHandler.Download)
	}

	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	authed.GET("/attendance/matrix", attendanceHandler.Matrix)
	authed.GET("/attendance/matrix/:studentId/:date", attendanceHandler.Cell)
	authed.GET("/attendance/export", attendanceHandler.ExportCSV)
	authed.GET("/attendance/sessions", attendanceHandler.Sessions)
	authed.GET("/metrics/system", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
