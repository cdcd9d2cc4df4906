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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/library-catalog-api/api/swagger"
	"github.com/noah-isme/library-catalog-api/internal/handler"
	internalmiddleware "github.com/noah-isme/library-catalog-api/internal/middleware"
	"github.com/noah-isme/library-catalog-api/internal/repository"
	"github.com/noah-isme/library-catalog-api/internal/service"
	"github.com/noah-isme/library-catalog-api/pkg/cache"
	"github.com/noah-isme/library-catalog-api/pkg/config"
	"github.com/noah-isme/library-catalog-api/pkg/database"
	"github.com/noah-isme/library-catalog-api/pkg/jobs"
	"github.com/noah-isme/library-catalog-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/library-catalog-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/library-catalog-api/pkg/middleware/requestid"
	"github.com/noah-isme/library-catalog-api/pkg/validation"
)

// @title Library Catalog API
// @version 1.0.0
// @description Book catalog with lifecycle transitions, CSV import and bulk operations
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logr.Info("database migrated")
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable; catalog cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, "catalog", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)

	validate := validation.New()
	bookRepo := repository.NewBookRepository(db)

	bookSvc := service.NewBookService(bookRepo, validate, cacheSvc, metrics, logr)
	catalogSvc := service.NewCatalogService(bookRepo, cacheSvc, logr)
	importSvc := service.NewImportService(bookRepo, validate, cacheSvc, metrics, logr, service.ImportServiceConfig{
		MaxFileSize: cfg.Import.MaxFileSizeBytes,
		MaxExamples: cfg.Import.MaxExamples,
	})
	bulkPool := jobs.NewPool("bulk", jobs.PoolConfig{Workers: cfg.Bulk.Workers, Logger: logr})
	bulkSvc := service.NewBulkService(bookSvc, bulkPool, metrics, logr, cfg.Bulk.MaxTargets)
	exportSvc := service.NewExportService(bookRepo, logr, nil, nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Import.MaxFileSizeBytes + 1<<20

	handler.RegisterOpsRoutes(r, handler.NewMetricsHandler(metrics, bookRepo))
	handler.RegisterBookRoutes(r.Group(cfg.APIPrefix), handler.BookRoutes{
		Books:  handler.NewBookHandler(bookSvc, catalogSvc),
		Import: handler.NewImportHandler(importSvc),
		Bulk:   handler.NewBulkHandler(bulkSvc),
		Export: handler.NewExportHandler(exportSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logr.Info("server stopped")
	return nil
}
