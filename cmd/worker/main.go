package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sellerpulse/sellerpulse/internal/app"
	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/clients"
	jobmetrics "github.com/sellerpulse/sellerpulse/internal/jobs"
	"github.com/sellerpulse/sellerpulse/internal/margin"
	"github.com/sellerpulse/sellerpulse/internal/marketplace"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/ozon"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/wildberries"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/platform/cache"
	"github.com/sellerpulse/sellerpulse/internal/platform/db"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
	"github.com/sellerpulse/sellerpulse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clientRepo := clients.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	txnRepo := transactions.NewRepository(pool)

	newOzon := func(c clients.Client) marketplace.OzonAPI {
		return ozon.New(ozon.Config{
			BaseURL:  cfg.OzonBaseURL,
			ClientID: c.OzonClientID,
			APIKey:   c.OzonAPIKey,
			Timeout:  cfg.MarketplaceTimeout,
			RPS:      cfg.OzonRPS,
			PageSize: cfg.SyncPageSize,
		})
	}
	newWB := func(c clients.Client) marketplace.WildberriesAPI {
		return wildberries.New(wildberries.Config{
			ContentBaseURL: cfg.WBContentBaseURL,
			StatsBaseURL:   cfg.WBStatsBaseURL,
			APIKey:         c.WBAPIKey,
			Timeout:        cfg.MarketplaceTimeout,
			ReqPerMinute:   cfg.WBReqPerMinute,
		})
	}
	importer := marketplace.NewImporter(
		newOzon, newWB,
		catalogRepo, orderRepo, txnRepo,
		marketplace.NewRunRepository(pool),
		logger,
	)

	marginCache := margin.NewCache(redisClient, cfg.MetricCacheTTL)
	marginRepo := margin.NewRepository(pool, orderRepo, txnRepo, catalogRepo)
	marginService := margin.NewService(marginRepo, transactions.NewKeywordClassifier(), marginCache, logger)

	metrics := jobmetrics.NewMetrics(nil)
	syncJob := jobs.NewMarketplaceSyncJob(importer, clientRepo, logger, metrics)
	rollupJob := jobs.NewMarginRollupJob(marginService, clientRepo, logger, metrics)

	syncTask, err := jobs.NewMarketplaceSyncTask(jobs.MarketplaceSyncPayload{})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	rollupTask, err := jobs.NewMarginRollupTask(jobs.MarginRollupPayload{})
	if err != nil {
		logger.Error("build rollup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMarketplaceSync, Handler: syncJob.Handle},
			{Type: jobs.TaskMarginRollup, Handler: rollupJob.Handle},
		},
		// Sync first, then roll up once the night's facts have landed.
		Cron: []jobs.CronRegistration{
			{Spec: "10 3 * * *", Task: syncTask},
			{Spec: "0 4 * * *", Task: rollupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
