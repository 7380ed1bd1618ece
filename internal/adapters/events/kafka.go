package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alejandrodnm/teamshares/internal/ports"
)

// keyed lo implementan los eventos que fijan su clave de partición.
type keyed interface {
	EventKey() string
}

// KafkaPublisher publica eventos JSON en Kafka. El topic va en cada mensaje,
// así un solo writer sirve para todos.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher crea el writer. prefix se antepone al topic ("teamshares." →
// "teamshares.trade_executed"); puede ir vacío.
func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		prefix: prefix,
	}
}

// Publish serializa event y lo escribe de forma síncrona.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event any) error {
	msg, err := p.message(topic, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events.Publish: %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) message(topic string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events.Publish: marshal %s: %w", topic, err)
	}
	msg := kafka.Message{Topic: p.prefix + topic, Value: data}
	if k, ok := event.(keyed); ok {
		msg.Key = []byte(k.EventKey())
	}
	return msg, nil
}

// Close vacía los mensajes pendientes y cierra el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
