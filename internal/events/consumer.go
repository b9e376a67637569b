package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent represents a payment-related event.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   string           `json:"order_id"`
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// OrderLifecycle is the part of the order service driven by payment events.
// Both operations must tolerate redelivery.
type OrderLifecycle interface {
	ConfirmPayment(ctx context.Context, id string) (*models.Order, error)
	FailPayment(ctx context.Context, id string) (*models.Order, error)
}

// MessageReader is the subset of *kafka.Reader used by the consumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer consumes payment events from Kafka.
type KafkaConsumer struct {
	reader MessageReader
	orders OrderLifecycle
	logger *zap.Logger
	stopCh chan struct{}
}

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, orders OrderLifecycle, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return NewKafkaConsumerWithReader(reader, orders, logger)
}

// NewKafkaConsumerWithReader wraps an existing reader.
func NewKafkaConsumerWithReader(reader MessageReader, orders OrderLifecycle, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: reader,
		orders: orders,
		logger: logger.Named("kafka-consumer"),
		stopCh: make(chan struct{}),
	}
}

// Start consumes events until ctx is done, Stop is called or the reader is
// closed.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			continue
		}

		c.handleMessage(ctx, msg)
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.Type {
	case PaymentEventCompleted:
		c.handlePaymentCompleted(ctx, &event)
	case PaymentEventFailed:
		c.handlePaymentFailed(ctx, &event)
	default:
		c.logger.Debug("Ignoring unknown event type", zap.String("type", string(event.Type)))
	}
}

func (c *KafkaConsumer) handlePaymentCompleted(ctx context.Context, event *PaymentEvent) {
	c.logger.Info("Handling payment completed event",
		zap.String("payment_id", event.PaymentID),
		zap.String("order_id", event.OrderID),
	)

	order, err := c.orders.ConfirmPayment(ctx, event.OrderID)
	if err != nil {
		c.logger.Error("Failed to confirm order",
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return
	}

	c.logger.Debug("Payment recorded",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.OrderStatus)),
	)
}

func (c *KafkaConsumer) handlePaymentFailed(ctx context.Context, event *PaymentEvent) {
	c.logger.Info("Handling payment failed event",
		zap.String("payment_id", event.PaymentID),
		zap.String("order_id", event.OrderID),
	)

	order, err := c.orders.FailPayment(ctx, event.OrderID)
	if err != nil {
		c.logger.Error("Failed to cancel order",
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return
	}

	c.logger.Debug("Payment failure recorded",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.OrderStatus)),
	)
}
