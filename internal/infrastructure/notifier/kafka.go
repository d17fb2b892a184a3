package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/segmentio/kafka-go"
)

// Kafka keys messages by order id so that events of one order stay ordered.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka notifier: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka notifier: no topic configured")
	}

	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

var _ interfaces.Notifier = (*Kafka)(nil)

func (k *Kafka) Publish(ctx context.Context, event entities.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", event.Type, err)
	}

	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
