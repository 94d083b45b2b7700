package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgdb "github.com/campusbay/marketplace/pkg/database"
	pkgevents "github.com/campusbay/marketplace/pkg/events"
)

// ProducerConfig tunes the outbox polling loop
type ProducerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration
}

// DefaultProducerConfig is used by the worker and the api process
var DefaultProducerConfig = ProducerConfig{
	BatchSize:    10,
	PollInterval: 500 * time.Millisecond,
	LockTimeout:  3 * time.Second,
}

// MarketEventsProducer relays market events from the outbox to RabbitMQ
type MarketEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher *pkgevents.RabbitMQPublisher
}

// NewMarketEventsProducer creates a producer publishing to the market exchange
func NewMarketEventsProducer(pool *pgxpool.Pool, conn *amqp.Connection, cfg ProducerConfig, logger *slog.Logger) (*MarketEventsProducer, error) {
	publisher, err := pkgevents.NewRabbitMQPublisher(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	outboxRepo := pkgevents.NewPostgresOutboxRepository()

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.BatchSize,
		cfg.PollInterval,
		pkgevents.MarketExchange,
		logger,
	)

	return &MarketEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// Run starts the relay loop
func (p *MarketEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *MarketEventsProducer) Close() error {
	return p.publisher.Close()
}
