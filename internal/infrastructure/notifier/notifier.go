// Package notifier publishes order events to the configured broker.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/pkg/logger"
)

// New picks the driver named in the config.
func New(cfg *config.Config, logger logger.Logger) (interfaces.Notifier, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}

	switch cfg.Notifier.Driver {
	case "kafka":
		return NewKafka(cfg.Notifier.Brokers, cfg.Notifier.Topic)
	case "rabbitmq":
		return NewRabbitMQ(cfg.Notifier.AMQPURL, cfg.Notifier.Exchange)
	case "log", "":
		return NewLog(logger), nil
	}

	return nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
}

// Log writes events to the application log. Used when no broker is deployed.
type Log struct {
	logger logger.Logger
}

func NewLog(logger logger.Logger) *Log {
	return &Log{logger: logger}
}

var _ interfaces.Notifier = (*Log)(nil)

func (l *Log) Publish(ctx context.Context, event entities.OrderEvent) error {
	l.logger.With(ctx, "order_id", event.OrderID, "event_id", event.ID).
		Infof("%s: %s %s %s", event.Type, event.Status, event.Total, event.Currency)
	return nil
}

func (l *Log) Close() error { return nil }
