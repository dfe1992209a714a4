// Package kafka предоставляет producer для audit-зеркала событий саги.
// HTTP остаётся единственным командным транспортом между сервисами;
// Kafka — опциональный поток saga.events для внешних потребителей
// (аналитика, аудит). Отправка best-effort: ошибка зеркала никогда
// не влияет на доставку самого события.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/fulfillment-saga/pkg/config"
	"example.com/fulfillment-saga/pkg/logger"
)

// Ключи headers сообщений.
const (
	// HeaderEventType — тип события саги.
	HeaderEventType = "event_type"

	// HeaderSourceService — сервис, породивший событие.
	HeaderSourceService = "source_service"
)

// Producer отправляет события саги в Kafka топик.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer создаёт Producer для audit-топика.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры Kafka")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Создан Kafka Producer для audit-зеркала")

	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

// Mirror отправляет событие саги в audit-топик.
// Ключ сообщения — aggregate_id: события одного заказа попадают
// в одну партицию и сохраняют порядок.
func (p *Producer) Mirror(ctx context.Context, aggregateID, eventType, sourceService string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(aggregateID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderSourceService, Value: []byte(sourceService)},
		},
		Time: time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}

	logger.FromContext(ctx).Debug().
		Str("aggregate_id", aggregateID).
		Str("event_type", eventType).
		Msg("Событие отправлено в audit-топик")

	return nil
}

// Close закрывает writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
