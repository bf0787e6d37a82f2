package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nachochiappe/fairsplit-sub000/internal/cache"
	"github.com/nachochiappe/fairsplit-sub000/internal/config"
	"github.com/nachochiappe/fairsplit-sub000/internal/events"
	apphttp "github.com/nachochiappe/fairsplit-sub000/internal/http"
	applog "github.com/nachochiappe/fairsplit-sub000/internal/log"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
	"github.com/nachochiappe/fairsplit-sub000/internal/storage"
)

// repository is the full storage surface the API needs, regardless of
// backend.
type repository interface {
	services.Repository
	apphttp.Directory
	Close() error
}

func main() {
	// .env is for local development; missing files are fine.
	_ = godotenv.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = "fairsplit"
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		repo repository
		err  error
	)
	switch cfg.DataBackend {
	case "memory":
		repo = storage.NewMemoryRepository()
		logger.Info("Initialized memory backend")
	default:
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize sqlite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	}
	defer repo.Close()

	// The event stream is optional; without a broker mutations simply
	// skip publishing.
	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP event stream connected", "exchange", cfg.AMQPExchange)
		}
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		defer redisStore.Close()
		store = redisStore
		logger.Info("Using redis snapshot cache", "addr", cfg.RedisAddr)
	} else {
		store = cache.NewLRU(cfg.CacheMaxItems, cfg.CacheTTL)
		logger.Info("Using in-process snapshot cache", "max_items", cfg.CacheMaxItems)
	}

	rates := services.NewRateResolver(repo)
	fixed := services.NewFixedMaterializer(repo, rates)
	installments := services.NewInstallmentService(repo)
	settlement := services.NewSettlementService(repo, fixed, installments, store)
	expenses := services.NewExpenseService(repo, rates, fixed, installments, publisher, settlement)

	srv := apphttp.NewServer(":"+cfg.Port, expenses, settlement, repo)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fairsplit server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
