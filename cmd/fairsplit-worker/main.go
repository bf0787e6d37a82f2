// Command fairsplit-worker listens for expense change events and refreshes
// the cached settlement snapshot for the affected household month.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nachochiappe/fairsplit-sub000/internal/cache"
	"github.com/nachochiappe/fairsplit-sub000/internal/config"
	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/events"
	applog "github.com/nachochiappe/fairsplit-sub000/internal/log"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
	"github.com/nachochiappe/fairsplit-sub000/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = "fairsplit-worker"
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	var (
		repo services.Repository
		err  error
	)
	switch cfg.DataBackend {
	case "memory":
		repo = storage.NewMemoryRepository()
	default:
		sqliteRepo, openErr := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if openErr != nil {
			logger.Error("Failed to initialize sqlite repository", "error", openErr, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		defer redisStore.Close()
		store = redisStore
	} else {
		store = cache.NewLRU(cfg.CacheMaxItems, cfg.CacheTTL)
	}

	rates := services.NewRateResolver(repo)
	fixed := services.NewFixedMaterializer(repo, rates)
	installments := services.NewInstallmentService(repo)
	settlement := services.NewSettlementService(repo, fixed, installments, store)

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	err = client.ConsumeExpenseChanged(ctx, func(msg *events.ExpenseChangedMessage) error {
		month, err := core.ParseMonth(msg.Month)
		if err != nil {
			logger.Warn("Discarding event with invalid month", "month", msg.Month, "error", err)
			return nil
		}
		snap, err := settlement.Refresh(ctx, msg.HouseholdID, month)
		if err != nil {
			return err
		}
		logger.Info("Settlement snapshot refreshed",
			"household_id", msg.HouseholdID,
			"month", msg.Month,
			"warnings", len(snap.Warnings))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
