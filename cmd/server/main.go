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
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/fintrack/internal/adapter/http"
	"github.com/iho/fintrack/internal/adapter/http/handler"
	"github.com/iho/fintrack/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/fintrack/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/fintrack/internal/adapter/repository/redis"
	"github.com/iho/fintrack/internal/infrastructure/config"
	"github.com/iho/fintrack/internal/infrastructure/logger"
	"github.com/iho/fintrack/internal/infrastructure/metrics"
	"github.com/iho/fintrack/internal/infrastructure/postgres"
	"github.com/iho/fintrack/internal/infrastructure/redis"
	"github.com/iho/fintrack/internal/infrastructure/scheduler"
	"github.com/iho/fintrack/internal/usecase"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}

	appLogger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	appMetrics := metrics.New(nil)

	// Storage is optional at startup; settlement requests report the
	// configuration error instead.
	configErr := cfg.StorageError()

	var pool *pgxpool.Pool
	if configErr != nil {
		logger.Warn().Err(configErr).Msg("storage not configured, settlement requests will fail")
	} else {
		var err error
		pool, err = connectStorage(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	locker, redisClient, err := newSettlementLocker(ctx, redis.Config{URL: cfg.RedisURL, DialTimeout: cfg.RedisDialTimeout}, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		settlementUC *usecase.SettlementUseCase
		service      handler.SettlementService
		reconciler   handler.ReconciliationService
		db           handler.Pinger
	)
	if pool != nil {
		settlementRepo := postgresRepo.NewSettlementRepository(pool, logger)
		settlementUC = usecase.NewSettlementUseCase(
			postgresRepo.NewTransactionRepository(pool),
			settlementRepo,
			locker,
			usecase.ClockFunc(time.Now),
			postgresRepo.NewULIDGenerator(),
			usecase.SettlementConfig{
				Mode:     cfg.Mode(),
				Location: cfg.Location,
				LockTTL:  cfg.SettleLockTTL,
			},
			logger.With().Str("component", "settlement").Logger(),
		)
		service = settlementUC
		reconciler = usecase.NewReconciliationUseCase(
			settlementRepo,
			settlementRepo,
			usecase.ClockFunc(time.Now),
			logger.With().Str("component", "reconciliation").Logger(),
		)
		db = pool
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		SettlementHandler: handler.NewSettlementHandler(service, handler.SettlementHandlerConfig{
			ConfigErr: configErr,
			Timeout:   cfg.SettleTimeout,
			Metrics:   appMetrics,
		}),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciler),
		HealthHandler:         handler.NewHealthHandler(db, redisClient),
		CronAuth:              middleware.NewCronAuth(cfg.CronSecret, cfg.SchedulerUserAgent),
		RateLimiter:           rateLimiter,
		Metrics:               appMetrics,
		Logger:                logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.HTTPPort).
			Bool("test_mode", cfg.SettleTestMode).
			Str("timezone", cfg.Location.String()).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.SchedulerEnabled && settlementUC != nil {
		sched := scheduler.New(scheduler.Config{
			Settler:  settlementUC,
			Logger:   logger.With().Str("component", "scheduler").Logger(),
			Metrics:  appMetrics,
			Interval: cfg.SchedulerInterval,
			Timeout:  cfg.SettleTimeout,
		})
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		Password:       cfg.ServiceKey,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	if cfg.RunMigrations {
		migrationURL, err := postgres.MigrationURL(cfg.DatabaseURL, cfg.ServiceKey)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := postgres.RunMigrations(migrationURL, cfg.MigrationsPath, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}

// newSettlementLocker returns a nil Locker when REDIS_URL is empty.
func newSettlementLocker(ctx context.Context, redisCfg redis.Config, logger zerolog.Logger) (usecase.Locker, *goredis.Client, error) {
	if redisCfg.URL == "" {
		logger.Info().Msg("redis not configured, settlement lock disabled")
		return nil, nil, nil
	}

	client, err := redis.NewClient(ctx, redisCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Msg("connected to redis")

	return redisRepo.NewSettlementLock(client), client, nil
}
