package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/streadway/amqp"
)

// RabbitMQ publishes to a durable topic exchange with the event type as
// routing key.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func NewRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	if url == "" {
		return nil, errors.New("rabbitmq notifier: no amqp url configured")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQ{conn: conn, channel: channel, exchange: exchange}, nil
}

var _ interfaces.Notifier = (*RabbitMQ)(nil)

// Publish is safe for concurrent use. amqp channels are not.
func (r *RabbitMQ) Publish(_ context.Context, event entities.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.Publish(
		r.exchange,
		string(event.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.OccurredAt,
			Headers: amqp.Table{
				"order_id":   event.OrderID.String(),
				"event_type": string(event.Type),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return errors.Join(r.channel.Close(), r.conn.Close())
}
