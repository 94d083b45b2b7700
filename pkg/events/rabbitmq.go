package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MarketExchange is the topic exchange all marketplace domain events are published to.
const MarketExchange = "market.events"

// ContentTypeProtobuf marks payloads encoded with EncodePayload.
const ContentTypeProtobuf = "application/x-protobuf"

// DeclareExchange declares the durable topic exchange used for domain events.
func DeclareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// RabbitMQPublisher implements EventPublisher
type RabbitMQPublisher struct {
	channel *amqp.Channel
}

// NewRabbitMQPublisher opens a channel and makes sure the market exchange exists.
func NewRabbitMQPublisher(conn *amqp.Connection) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch, MarketExchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{channel: ch}, nil
}

// Close closes the channel
func (p *RabbitMQPublisher) Close() error {
	return p.channel.Close()
}

// Publish publishes a persistent message; the outbox event id travels as MessageId.
func (p *RabbitMQPublisher) Publish(ctx context.Context, exchange, routingKey string, messageID uuid.UUID, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  ContentTypeProtobuf,
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID.String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
