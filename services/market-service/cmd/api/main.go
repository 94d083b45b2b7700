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

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/campusbay/marketplace/pkg/auth"
	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	pkgdb "github.com/campusbay/marketplace/pkg/database"
	pkgevents "github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/pkg/telemetry"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/api"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/cache"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/database"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/events"
	"github.com/campusbay/marketplace/services/market-service/internal/config"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/bids"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	pkgconfig.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ for the in-process outbox relay
	amqpConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 3. Redis is optional: without it item reads go straight to Postgres
	var itemCache *cache.RedisItemCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, item cache disabled", "error", err)
		} else {
			itemCache = cache.NewRedisItemCache(rdb, cfg.CacheTTL)
			logger.Info("Redis Connected")
		}
	}

	// 4. Auth: the market only validates tokens issued by auth-service
	publicKey, err := os.ReadFile(cfg.AuthPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read auth public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, cfg.AuthIssuer)
	if err != nil {
		logger.Error("Failed to load auth public key", "error", err)
		os.Exit(1)
	}

	// 5. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	itemRepo := database.NewPostgresItemRepository(pool)
	categoryRepo := database.NewPostgresCategoryRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := pkgevents.NewPostgresOutboxRepository()

	// 6. Initialize Services (Domain Layer)
	listingOpts := []listings.Option{listings.WithCampuses(cfg.Campuses)}
	engineOpts := []bids.EngineOption{bids.WithMinBidIncrement(cfg.MinBidIncrement)}
	if itemCache != nil {
		listingOpts = append(listingOpts, listings.WithCache(itemCache))
		engineOpts = append(engineOpts, bids.WithCacheInvalidator(itemCache))
	}
	listingService := listings.NewService(txManager, itemRepo, categoryRepo, logger, listingOpts...)
	engine := bids.NewEngine(txManager, itemRepo, bidRepo, outboxRepo, logger, engineOpts...)

	// 7. Outbox relay runs next to the API; cmd/worker can scale it separately
	producerCfg := events.DefaultProducerConfig
	producerCfg.LockTimeout = cfg.LockTimeout
	producer, err := events.NewMarketEventsProducer(pool, amqpConn, producerCfg, logger)
	if err != nil {
		logger.Error("Failed to create events producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	// 8. Initialize API Handler (ConnectRPC)
	mux := http.NewServeMux()
	api.NewMarketServiceHandler(listingService, engine).
		Register(mux, auth.NewAuthInterceptor(signer, api.PublicProcedures...))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return producer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Market Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Market service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Market service stopped")
}
