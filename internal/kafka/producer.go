package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventPublisher — интерфейс для отправки событий портала (для подмены в тестах).
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]interface{}) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события в топик Kafka. Ошибки возвращаются вызывающему,
// который решает, логировать их или нет.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой — Publish no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) Enabled() bool { return p.writer != nil }

// Publish sends {"event": event, ...payload}. Messages are keyed by the
// payload "key" entry when present so one entity's events stay ordered.
func (p *Producer) Publish(ctx context.Context, event string, payload map[string]interface{}) error {
	if p.writer == nil {
		return nil
	}
	msg := map[string]interface{}{"event": event}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", event, err)
	}
	km := kafka.Message{Value: body}
	if key, ok := payload["key"].(string); ok && key != "" {
		km.Key = []byte(key)
	}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka: write %s: %w", event, err)
	}
	return nil
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
