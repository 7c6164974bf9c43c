package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	routingKeyLoanCreated       = "loan.created"
	routingKeyPaymentApplied    = "loan.payment.applied"
	routingKeyLoanStatusChanged = "loan.status.changed"
	publisherAppID              = "lending-ledger"
)

type EventPublisher interface {
	PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error
	PublishPaymentApplied(ctx context.Context, event PaymentAppliedEvent) error
	PublishLoanStatusChanged(ctx context.Context, event LoanStatusChangedEvent) error
}

type RabbitMQEventPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	err = tempCh.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey))

	channel, err := p.conn.Channel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.DebugContext(ctx, "Successfully published message", "bodySize", len(body))
	return nil
}

func (p *RabbitMQEventPublisher) PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error {
	return p.publish(ctx, routingKeyLoanCreated, event)
}

func (p *RabbitMQEventPublisher) PublishPaymentApplied(ctx context.Context, event PaymentAppliedEvent) error {
	return p.publish(ctx, routingKeyPaymentApplied, event)
}

func (p *RabbitMQEventPublisher) PublishLoanStatusChanged(ctx context.Context, event LoanStatusChangedEvent) error {
	return p.publish(ctx, routingKeyLoanStatusChanged, event)
}

// NoopPublisher discards all events. Used when messaging is not
// configured and in tests.
type NoopPublisher struct{}

var _ EventPublisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishLoanCreated(context.Context, LoanCreatedEvent) error { return nil }

func (NoopPublisher) PublishPaymentApplied(context.Context, PaymentAppliedEvent) error { return nil }

func (NoopPublisher) PublishLoanStatusChanged(context.Context, LoanStatusChangedEvent) error {
	return nil
}
