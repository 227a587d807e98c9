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
	"github.com/redis/go-redis/v9"

	"github.com/counterpos/counterpos/internal/app"
	"github.com/counterpos/counterpos/internal/cart"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/checkout"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/masterdata"
	"github.com/counterpos/counterpos/internal/observability"
	"github.com/counterpos/counterpos/internal/platform/cache"
	"github.com/counterpos/counterpos/internal/platform/db"
	"github.com/counterpos/counterpos/internal/recipes"
	"github.com/counterpos/counterpos/internal/sales"
	"github.com/counterpos/counterpos/internal/shared"
	"github.com/counterpos/counterpos/jobs"
	"github.com/counterpos/counterpos/report"
)

// reportCachePrefix must match the worker so both bump the same version key.
const reportCachePrefix = "counterpos:reports"

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	locker := shared.NewLocker(redisClient, 10*time.Second)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool))
	recipesService := recipes.NewService(recipes.NewRepository(dbpool), inventoryService)
	catalogService := catalog.NewService(inventoryService, recipesService)
	masterdataService := masterdata.NewService(masterdata.NewRepository(dbpool))

	reportCache := cache.NewVersioned(redisClient, reportCachePrefix, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, func(version int64) {
		logger.Debug("report cache bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("report cache bump listener", slog.Any("error", err))
	}
	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.ReceiptLocale)
	salesService := sales.NewService(sales.NewRepository(dbpool), reportCache, pdfClient, logger, sales.Options{
		StoreName: cfg.StoreName,
	})

	cartStore := cart.NewRedisStore(redisClient, cfg.CartTTL)
	cartService := cart.NewService(cartStore, catalogService, masterdataService, locker, logger)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	checkoutService := checkout.NewService(checkout.Deps{
		Carts:       cartStore,
		Catalog:     catalogService,
		Selections:  masterdataService,
		Committer:   checkout.NewPGCommitter(dbpool, cfg.AllowNegativeStock),
		Locker:      locker,
		Idempotency: idempotencyStore,
		Notifier:    jobClient,
		Reports:     salesService,
		Metrics:     metrics,
		Logger:      logger,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Health: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    redisPinger{client: redisClient},
		},
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		RecipesHandler:    recipes.NewHandler(logger, recipesService),
		CatalogHandler:    catalog.NewHandler(logger, catalogService, cartService),
		CartHandler:       cart.NewHandler(logger, cartService),
		CheckoutHandler:   checkout.NewHandler(logger, checkoutService),
		SalesHandler:      sales.NewHandler(logger, salesService),
		MasterDataHandler: masterdata.NewHandler(logger, masterdataService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		ReportHandler:     report.NewHandler(pdfClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
