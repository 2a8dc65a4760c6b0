// Package main provides the API server entry point for the pacing engine.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pacing-engine/internal/api"
	"github.com/pacing-engine/internal/config"
	"github.com/pacing-engine/internal/logging"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/service"
	"github.com/pacing-engine/internal/storage"
	"github.com/pacing-engine/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Pacing engine starting")

	clock, err := pacing.NewClock(cfg.Pacing.Timezone)
	if err != nil {
		logger.WithError(err).Fatal("Invalid business timezone")
	}

	// Media-plan store (planned schedules, read-only for this service)
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Delivery warehouse (actuals)
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	// Snapshot cache
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	scheduleRepo := storage.NewScheduleRepository(postgres)
	deliveryRepo := storage.NewDeliveryRepository(clickhouse, clock, &cfg.Pacing)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	pacingService := service.NewPacingService(scheduleRepo, deliveryRepo, clock)
	portfolioService := service.NewPortfolioService(scheduleRepo, deliveryRepo, clock, cacheService)

	// Refresh runs recompute a campaign's report and invalidate the cached
	// portfolio rollup so the next read picks up fresh figures.
	refresher := worker.NewRefreshScheduler(2*time.Second, func(ctx context.Context, campaignID string) error {
		schedules, err := scheduleRepo.GetByCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(schedules))
		for _, s := range schedules {
			ids = append(ids, s.LineItemID)
		}

		report, err := pacingService.Report(ctx, &service.ReportInput{
			CampaignID:  campaignID,
			LineItemIDs: ids,
		})
		if err != nil {
			return err
		}

		if err := cacheService.Set(ctx, cacheService.ReportKey(campaignID), report); err != nil {
			return err
		}
		return portfolioService.InvalidateSnapshot(ctx)
	})
	defer refresher.Close()

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Pacing.QueryDeadline + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, pacingService, portfolioService, deliveryRepo, refresher)

	go func() {
		logger.WithFields(map[string]interface{}{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("HTTP server listening")

		if err := server.Start(); err != nil {
			logger.WithError(err).Error("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	if err := server.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
