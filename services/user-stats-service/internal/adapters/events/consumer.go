package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/campusbay/marketplace/pkg/events"
)

// QueueName is the durable queue the stats worker reads market events from.
const QueueName = "user_stats_market_events"

// ErrUnprocessable marks a delivery that will never succeed, so it is
// dropped instead of requeued.
var ErrUnprocessable = errors.New("unprocessable message")

// StatsProcessor is the part of userstats.Service the consumer drives
type StatsProcessor interface {
	ProcessUserCreated(ctx context.Context, event *pkgevents.UserCreated) error
	ProcessItemSold(ctx context.Context, event *pkgevents.ItemSold) error
}

// MarketEventsConsumer feeds user.created and item.sold messages into the stats service
type MarketEventsConsumer struct {
	conn     *amqp.Connection
	service  StatsProcessor
	logger   *slog.Logger
	prefetch int
}

func NewMarketEventsConsumer(conn *amqp.Connection, service StatsProcessor, logger *slog.Logger) *MarketEventsConsumer {
	return &MarketEventsConsumer{
		conn:     conn,
		service:  service,
		logger:   logger,
		prefetch: 10,
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *MarketEventsConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := Setup(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := ch.Consume(
		QueueName, // queue
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...", "queue", QueueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.settle(d, c.Handle(ctx, d.RoutingKey, d.Body))
		}
	}
}

// Handle decodes one message and applies it to the stats.
func (c *MarketEventsConsumer) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case pkgevents.UserCreatedRoutingKey:
		event, err := pkgevents.DecodeUserCreated(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnprocessable, err)
		}
		return c.service.ProcessUserCreated(ctx, event)
	case pkgevents.ItemSoldRoutingKey:
		event, err := pkgevents.DecodeItemSold(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnprocessable, err)
		}
		return c.service.ProcessItemSold(ctx, event)
	default:
		return fmt.Errorf("%w: unexpected routing key %q", ErrUnprocessable, routingKey)
	}
}

func (c *MarketEventsConsumer) settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to Ack message", "error", ackErr)
		}
	case errors.Is(err, ErrUnprocessable):
		c.logger.Error("Dropping message", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
	default:
		c.logger.Error("Failed to process event", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
	}
}

// Setup declares the market exchange and binds the stats queue to the events it consumes.
func Setup(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch, pkgevents.MarketExchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		QueueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return err
	}

	for _, key := range []string{pkgevents.UserCreatedRoutingKey, pkgevents.ItemSoldRoutingKey} {
		if err := ch.QueueBind(q.Name, key, pkgevents.MarketExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
