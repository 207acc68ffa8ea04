package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/api/rest"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/cache"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/config"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/database"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/repository"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/storage"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/telemetry"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/anomaly"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/explanation"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/extraction"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/invoicing"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	fileStore, err := storage.NewLocalStore(cfg.Uploads.Dir, logger)
	if err != nil {
		logger.Fatal("uploads directory unavailable", zap.Error(err))
	}

	store := cache.NewInvoiceStore(
		repository.NewInvoiceRepository(pool), redisClient, cfg.Redis.CacheTTL, logger)

	scorer := anomaly.NewScorer(anomaly.Config{
		Endpoint: cfg.AnomalyScorer.Endpoint,
		APIKey:   cfg.AnomalyScorer.APIKey,
		Timeout:  cfg.AnomalyScorer.Timeout,
	}, logger)

	extractor := extraction.NewClient(extraction.Config{
		Endpoint:     cfg.Extraction.Endpoint,
		APIKey:       cfg.Extraction.APIKey,
		APIVersion:   cfg.Extraction.APIVersion,
		Timeout:      cfg.Extraction.Timeout,
		PollInterval: cfg.Extraction.PollInterval,
	}, logger)

	explainer := explanation.NewGenerator(explanation.Config{
		Endpoint:   cfg.Explanation.Endpoint,
		APIKey:     cfg.Explanation.APIKey,
		Deployment: cfg.Explanation.Deployment,
		APIVersion: cfg.Explanation.APIVersion,
		Timeout:    cfg.Explanation.Timeout,
	}, logger)

	engine := scoring.NewService(store, scorer, logger)
	svc := invoicing.NewService(store, fileStore, extractor, engine, explainer, logger)

	handler := rest.NewHandler(svc, cfg.Version, logger)
	router := rest.NewRouter(handler, rest.RouterConfig{
		UploadsDir:        cfg.Uploads.Dir,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.Server.RateLimit.BurstSize,
		Logger:            logger,
	})

	server := rest.NewServer(&cfg.Server, router, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
