package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/bookfit/credits/internal/adapter/http"
	"github.com/bookfit/credits/internal/adapter/http/handler"
	postgresRepo "github.com/bookfit/credits/internal/adapter/repository/postgres"
	redisRepo "github.com/bookfit/credits/internal/adapter/repository/redis"
	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/infrastructure/config"
	"github.com/bookfit/credits/internal/infrastructure/logger"
	"github.com/bookfit/credits/internal/infrastructure/metrics"
	"github.com/bookfit/credits/internal/infrastructure/postgres"
	"github.com/bookfit/credits/internal/infrastructure/redis"
	"github.com/bookfit/credits/internal/infrastructure/worker"
	"github.com/bookfit/credits/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	log.Logger = appLogger

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	payoutRate, err := cfg.PayoutRateDecimal()
	if err != nil {
		appLogger.Fatal().Err(err).Msg("invalid payout rate")
	}

	// Metrics
	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	txRepo := postgresRepo.NewTransactionRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	bookingRepo := postgresRepo.NewBookingRepository(pool)
	cache := redisRepo.NewCache(redisClient).WithMetrics(m)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier()

	// Initialize use cases
	txUC := usecase.NewTransactionUseCase(
		txManager, accountRepo, txRepo, entryRepo, cache,
		idGen, retrier, domain.DefaultExpiryPolicy(), m, appLogger,
	)
	bookingUC := usecase.NewBookingUseCase(
		txUC, bookingRepo, entryRepo, accountRepo, idGen,
		domain.CancellationPolicy{
			Window:            cfg.CancellationWindow,
			LateRefundPercent: int64(cfg.LateRefundPercent),
		},
		m, appLogger,
	)
	balanceUC := usecase.NewBalanceUseCase(accountRepo, entryRepo, cache, payoutRate, appLogger)
	reconcileUC := usecase.NewReconciliationUseCase(
		accountRepo, entryRepo, txRepo, cache, cfg.ReconcileCooldown, m, appLogger,
	)

	// Initialize handlers
	transactionHandler := handler.NewTransactionHandler(txUC)
	creditsHandler := handler.NewCreditsHandler(txUC)
	balanceHandler := handler.NewBalanceHandler(balanceUC)
	bookingHandler := handler.NewBookingHandler(bookingUC)
	adminHandler := handler.NewAdminHandler(reconcileUC)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransactionHandler: transactionHandler,
		CreditsHandler:     creditsHandler,
		BalanceHandler:     balanceHandler,
		BookingHandler:     bookingHandler,
		AdminHandler:       adminHandler,
		HealthHandler:      healthHandler,
		IdempotencyStore:   idempotencyStore,
		Metrics:            m,
		Logger:             appLogger,
	})

	// Start maintenance worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	maintenance := worker.NewMaintenance(worker.Config{
		Service:        reconcileUC,
		Logger:         appLogger,
		SweepOlderThan: cfg.StalePendingTimeout,
		BatchSize:      cfg.ReconcileBatchSize,
	})
	go func() {
		if err := maintenance.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("maintenance worker stopped")
		}
	}()
	go reportPoolStats(workerCtx, pool, m)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server...")
	stopWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server stopped")
}

// reportPoolStats publishes pgx pool usage on the connections gauge.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(pool.Stat().TotalConns()))
		}
	}
}
