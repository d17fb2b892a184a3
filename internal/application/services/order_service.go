package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/google/uuid"
)

type OrderService struct {
	repo     repositories.OrderRepository
	gateway  interfaces.PaymentGateway
	trm      interfaces.TxManager
	notifier interfaces.Notifier
	config   *config.Config
	logger   logger.Logger
	now      func() time.Time
}

func NewOrderService(
	repo repositories.OrderRepository,
	gateway interfaces.PaymentGateway,
	trm interfaces.TxManager,
	notifier interfaces.Notifier,
	config *config.Config,
	logger logger.Logger,
) (*OrderService, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: order repository")
	}
	if gateway == nil {
		return nil, errors.New("nil dependency: payment gateway")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if notifier == nil {
		return nil, errors.New("nil dependency: notifier")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &OrderService{
		repo:     repo,
		gateway:  gateway,
		trm:      trm,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}, nil
}

var _ interfaces.OrderService = (*OrderService)(nil)

// Get order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Items, err = s.repo.GetItems(ctx, id); err != nil {
		return nil, err
	}

	return order, nil
}

// Anulate cancels the order. Canceling an already canceled order is a no-op.
func (s *OrderService) Anulate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	order, changed, err := s.transition(ctx, id, func(o *entities.Order, at time.Time) (bool, error) {
		return o.Cancel(at)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.With(ctx, "order_id", order.ID).Info("order anulated")

		event := entities.NewOrderEvent(entities.EventOrderCanceled, order, s.now())
		if err = s.notifier.Publish(ctx, event); err != nil {
			s.logger.With(ctx, "order_id", order.ID).Errorf("publish %s: %s", event.Type, err)
		}
	}

	return order, nil
}

// UpdateStatus moves a settled order through fulfillment. Payment and
// cancellation have their own paths.
func (s *OrderService) UpdateStatus(
	ctx context.Context, id uuid.UUID, status entities.OrderStatus,
) (*entities.Order, error) {
	var step func(o *entities.Order, at time.Time) (bool, error)

	switch status {
	case entities.StatusShipped:
		step = (*entities.Order).Ship
	case entities.StatusDelivered:
		step = (*entities.Order).Deliver
	default:
		return nil, errs.NewValidationError("status", "must be shipped or delivered")
	}

	order, changed, err := s.transition(ctx, id, step)
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.With(ctx, "order_id", order.ID).Infof("order is now %s", order.Status)
	}

	return order, nil
}

func (s *OrderService) Metadata(ctx context.Context) (*entities.OrdersMetadata, error) {
	return s.repo.Metadata(ctx)
}

// PaymentLink builds the provider redirect for an order awaiting payment.
func (s *OrderService) PaymentLink(ctx context.Context, id uuid.UUID) (string, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}

	if order.Status != entities.StatusPlaced {
		return "", fmt.Errorf("%w: order is %s", errs.ErrInvalidTransition, order.Status)
	}

	currency := order.Currency
	if !currency.Known() {
		if currency, err = entities.ParseCurrency(s.config.Checkout.DefaultCurrency); err != nil {
			return "", err
		}
	}

	return s.gateway.CheckoutURL(order, currency)
}

func (s *OrderService) transition(
	ctx context.Context,
	id uuid.UUID,
	step func(o *entities.Order, at time.Time) (bool, error),
) (*entities.Order, bool, error) {
	var (
		order   *entities.Order
		changed bool
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error

		if order, err = s.repo.GetOrderForUpdate(ctx, id); err != nil {
			return err
		}

		if changed, err = step(order, s.now().UTC()); err != nil || !changed {
			return err
		}

		return s.repo.UpdateStatus(ctx, order)
	})

	return order, changed, err
}
