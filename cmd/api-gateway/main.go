package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/internal/handler"
	"github.com/noah-isme/sku-media-api/internal/middleware"
	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/internal/service"
	"github.com/noah-isme/sku-media-api/pkg/cache"
	"github.com/noah-isme/sku-media-api/pkg/config"
	"github.com/noah-isme/sku-media-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sku-media-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sku-media-api/pkg/middleware/requestid"
	"github.com/noah-isme/sku-media-api/pkg/storage"
)

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

	buffers, err := buildBufferStore(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to init buffer store", "error", err)
	}

	work, err := storage.NewLocalStorage(cfg.Process.TempDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init working storage", "error", err)
	}

	records := repository.NewRecordStore()
	webhookLogs := repository.NewWebhookLogStore(0)
	metricsSvc := service.NewMetricsService()
	normalizer := service.NewNormalizeService(logr)
	archiveSvc := service.NewArchiveService(logr)
	telegramSvc := service.NewTelegramService(cfg.Telegram, metricsSvc, logr)

	var processSvc *service.ProcessService
	if cfg.Webhook.URL != "" {
		relaySvc := service.NewRelayService(cfg.Webhook, webhookLogs, metricsSvc, logr)
		processSvc = service.NewProcessService(records, buffers, work, normalizer, relaySvc, metricsSvc, logr, cfg.Process)
	} else {
		logr.Info("no webhook configured, previews will be served locally")
		processSvc = service.NewProcessService(records, buffers, work, normalizer, nil, metricsSvc, logr, cfg.Process)
	}

	processHandler := handler.NewProcessHandler(processSvc)
	previewHandler := handler.NewPreviewHandler(buffers)
	deliveryHandler := handler.NewDeliveryHandler(buffers, archiveSvc, telegramSvc, logr)
	webhookLogHandler := handler.NewWebhookLogHandler(webhookLogs)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	r.POST("/process", processHandler.Submit)
	r.GET("/process", processHandler.Snapshot)
	r.GET("/preview/:id", previewHandler.Get)
	r.POST("/zip-and-telegram", deliveryHandler.Deliver)
	r.POST("/webhook-logs", webhookLogHandler.Append)
	r.GET("/webhook-logs", webhookLogHandler.List)

	go runSweeper(cfg, buffers, work, metricsSvc, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func buildBufferStore(cfg *config.Config) (repository.BufferStore, error) {
	if !cfg.Redis.Enabled {
		return repository.NewMemoryBufferStore(cfg.Buffer.TTL), nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}
	return repository.NewRedisBufferStore(client, cfg.Buffer.TTL), nil
}

// runSweeper periodically evicts expired buffers and stale working files.
func runSweeper(cfg *config.Config, buffers repository.BufferStore, work *storage.LocalStorage, metricsSvc *service.MetricsService, logr *zap.Logger) {
	interval := cfg.Buffer.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		evicted, err := buffers.Sweep(ctx)
		if err != nil {
			logr.Warn("buffer sweep failed", zap.Error(err))
		} else if evicted > 0 {
			logr.Info("buffer sweep done", zap.Int("evicted", evicted))
		}
		if n, lenErr := buffers.Len(ctx); lenErr == nil {
			metricsSvc.SetBufferEntries(n)
		}
		if removed, cleanErr := work.CleanupOlderThan(cfg.Buffer.TTL); cleanErr != nil {
			logr.Warn("working storage cleanup failed", zap.Error(cleanErr))
		} else if len(removed) > 0 {
			logr.Info("working storage cleanup done", zap.Int("removed", len(removed)))
		}
		cancel()
	}
}
