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
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/campusbay/marketplace/pkg/auth"
	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	pkgdb "github.com/campusbay/marketplace/pkg/database"
	pkgevents "github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/pkg/telemetry"
	"github.com/campusbay/marketplace/services/auth-service/internal/adapters/api"
	"github.com/campusbay/marketplace/services/auth-service/internal/adapters/database"
	"github.com/campusbay/marketplace/services/auth-service/internal/config"
	"github.com/campusbay/marketplace/services/auth-service/internal/domain/users"
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

	// 1. Load Keys
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		logger.Error("Failed to read private key", "path", cfg.PrivateKeyPath, "error", err)
		os.Exit(1)
	}
	publicKeyPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "path", cfg.PublicKeyPath, "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSigner(privateKeyPEM, publicKeyPEM, cfg.Issuer)
	if err != nil {
		logger.Error("Failed to create signer", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Postgres Connection Pool
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

	// 3. RabbitMQ carries user.created to the stats service
	amqpConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 4. Initialize Repositories
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	userRepo := database.NewPostgresUserRepository(pool)
	tokenRepo := database.NewPostgresTokenRepository(pool)
	outboxRepo := pkgevents.NewPostgresOutboxRepository()

	// 5. Initialize Service
	authService := users.NewService(userRepo, tokenRepo, outboxRepo, signer, txManager, logger,
		users.WithEmailDomains(cfg.EmailDomains),
		users.WithRefreshTokenTTL(cfg.RefreshTokenTTL),
	)
	relay := pkgevents.NewOutboxRelay(outboxRepo, publisher, txManager, 10, cfg.OutboxPollInterval,
		pkgevents.MarketExchange, logger)

	// 6. Initialize API Handler (ConnectRPC)
	mux := http.NewServeMux()
	api.NewAuthServiceHandler(authService).
		Register(mux, auth.NewAuthInterceptor(signer, api.PublicProcedures...))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	// Other services fetch the verification key from here.
	mux.HandleFunc("/.well-known/public-key", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-pem-file")
		_, _ = w.Write(publicKeyPEM)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Auth Service API", "addr", cfg.HTTPAddr)
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
		logger.Error("Auth service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Auth service stopped")
}
