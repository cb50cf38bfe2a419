package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/courierly/dispatch-service/internal/entities"

	"github.com/segmentio/kafka-go"
)

// deliveryEvent is the wire form of a delivery lifecycle event.
type deliveryEvent struct {
	Type       string    `json:"type"`
	DeliveryID string    `json:"delivery_id"`
	UserID     string    `json:"user_id"`
	DriverID   string    `json:"driver_id,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

type KafkaPublisher struct {
	logger *slog.Logger
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher for the delivery lifecycle stream.
// Publishing is best effort: a broker failure is logged and never surfaced
// to the caller, so dispatch keeps working when the stream is down.
func NewKafkaPublisher(logger *slog.Logger, brokers []string, topic string, batchTimeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{
		logger: logger.With(slog.String("component", "events")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: batchTimeout,
		},
	}
}

func (p *KafkaPublisher) DeliveryEvent(ctx context.Context, kind string, delivery entities.Delivery) {
	payload, err := json.Marshal(deliveryEvent{
		Type:       kind,
		DeliveryID: delivery.ID,
		UserID:     delivery.UserID,
		DriverID:   delivery.DriverID,
		Status:     string(delivery.Status),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal delivery event", slog.String("error", err.Error()))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(delivery.ID),
		Value: payload,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish delivery event",
			slog.String("kind", kind),
			slog.String("delivery_id", delivery.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops all events. Used when the event stream is disabled.
type NopPublisher struct{}

func (NopPublisher) DeliveryEvent(context.Context, string, entities.Delivery) {}
