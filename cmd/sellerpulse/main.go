package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sellerpulse/sellerpulse/cmd/sellerpulse/cli"
	"github.com/sellerpulse/sellerpulse/internal/app"
	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/clients"
	"github.com/sellerpulse/sellerpulse/internal/margin"
	"github.com/sellerpulse/sellerpulse/internal/marketplace"
	"github.com/sellerpulse/sellerpulse/internal/observability"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/platform/cache"
	"github.com/sellerpulse/sellerpulse/internal/platform/db"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
	"github.com/sellerpulse/sellerpulse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "rollup" {
		os.Exit(runRollupCLI(os.Args[2:]))
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
		logger.Warn("redis unavailable, metric cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics(nil)

	catalogRepo := catalog.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	txnRepo := transactions.NewRepository(pool)

	catalogService := catalog.NewService(catalogRepo, orderRepo, logger, catalog.ServiceConfig{
		ReplenishmentWindowDays: cfg.ReplenishmentWindowDays,
	})
	catalogHandler := catalog.NewHandler(logger, catalogService)
	clientHandler := clients.NewHandler(logger, clients.NewRepository(pool))

	var marginCache *margin.Cache
	if redisClient != nil {
		marginCache = margin.NewCache(redisClient, cfg.MetricCacheTTL)
	}
	marginRepo := margin.NewRepository(pool, orderRepo, txnRepo, catalogRepo)
	marginService := margin.NewService(marginRepo, transactions.NewKeywordClassifier(), marginCache, logger)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	enqueueRollup := func(r *http.Request, clientID int64) (string, error) {
		info, err := jobsClient.EnqueueMarginRollup(r.Context(), jobs.MarginRollupPayload{ClientID: clientID})
		if err != nil {
			return "", err
		}
		return info.ID, nil
	}
	marginHandler := margin.NewHandler(logger, marginService, enqueueRollup)

	enqueueSync := func(r *http.Request, clientID int64) (string, error) {
		info, err := jobsClient.EnqueueMarketplaceSync(r.Context(), jobs.MarketplaceSyncPayload{ClientID: clientID})
		if err != nil {
			return "", err
		}
		return info.ID, nil
	}
	syncHandler := marketplace.NewHandler(logger, marketplace.NewRunRepository(pool), enqueueSync)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		ClientHandler:  clientHandler,
		MarginHandler:  marginHandler,
		SyncHandler:    syncHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}

// runRollupCLI executes the synchronous backfill subcommand and returns
// its exit code.
func runRollupCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	catalogRepo := catalog.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	txnRepo := transactions.NewRepository(pool)
	marginRepo := margin.NewRepository(pool, orderRepo, txnRepo, catalogRepo)
	marginService := margin.NewService(marginRepo, transactions.NewKeywordClassifier(), nil, logger)

	rollupCLI := cli.NewRollupCLI(marginService, clients.NewRepository(pool), logger)
	opts, err := cli.ParseRollupArgs(args)
	if err != nil {
		slog.Default().Error("parse args", slog.Any("error", err))
		return 1
	}
	return rollupCLI.BackfillCommand(ctx, opts)
}
