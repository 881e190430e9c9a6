package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes JSON messages to a topic exchange.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher opens a channel and declares exchange.
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareTopicExchange(ch, exchange); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish marshals v and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("published message",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
		zap.Int("body_size", len(body)),
	)
	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// EventPublisher publishes reading and sync events on fixed routing keys.
type EventPublisher struct {
	publisher         *Publisher
	readingRoutingKey string
	syncRoutingKey    string
}

func NewEventPublisher(p *Publisher, readingRoutingKey, syncRoutingKey string) *EventPublisher {
	return &EventPublisher{
		publisher:         p,
		readingRoutingKey: readingRoutingKey,
		syncRoutingKey:    syncRoutingKey,
	}
}

func (e *EventPublisher) PublishReading(ctx context.Context, event ReadingEvent) error {
	return e.publisher.Publish(ctx, e.readingRoutingKey, event)
}

func (e *EventPublisher) PublishSync(ctx context.Context, event SyncEvent) error {
	return e.publisher.Publish(ctx, e.syncRoutingKey, event)
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReading(context.Context, ReadingEvent) error { return nil }

func (NopPublisher) PublishSync(context.Context, SyncEvent) error { return nil }
