package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderDeleted       EventType = "order.deleted"
)

// OrderEvent is the envelope written to the orders topic.
type OrderEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return NewKafkaPublisherWithWriter(writer, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger.Named("kafka-publisher"),
	}
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.publish(ctx, p.createEvent(ctx, EventTypeOrderCreated, order.ID, order.UserID, data))
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	payload := struct {
		Order          *models.Order      `json:"order"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
		NewStatus      models.OrderStatus `json:"new_status"`
	}{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.OrderStatus,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.publish(ctx, p.createEvent(ctx, EventTypeOrderStatusChanged, order.ID, order.UserID, data))
}

// PublishOrderCancelled publishes an order cancellation event.
func (p *KafkaPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, reason string) error {
	payload := struct {
		Order  *models.Order `json:"order"`
		Reason string        `json:"reason"`
	}{
		Order:  order,
		Reason: reason,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.publish(ctx, p.createEvent(ctx, EventTypeOrderCancelled, order.ID, order.UserID, data))
}

// PublishOrderDeleted publishes an order deletion event.
func (p *KafkaPublisher) PublishOrderDeleted(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.publish(ctx, p.createEvent(ctx, EventTypeOrderDeleted, order.ID, order.UserID, data))
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, orderID, userID string, data []byte) *OrderEvent {
	return &OrderEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       orderID,
		UserID:        userID,
		Data:          data,
		Metadata:      make(map[string]string),
		Timestamp:     time.Now(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
