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
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	"github.com/google/uuid"
)

// EventTransactionUpdated is the only provider event that moves orders.
const EventTransactionUpdated = "transaction.updated"

type PaymentService struct {
	orderRepo  repositories.OrderRepository
	gateway    interfaces.PaymentGateway
	trm        interfaces.TxManager
	notifier   interfaces.Notifier
	reconciler orderEnqueuer
	metrics    *metrics.Metrics
	config     *config.Config
	logger     logger.Logger
	now        func() time.Time
}

func NewPaymentService(
	orderRepo repositories.OrderRepository,
	gateway interfaces.PaymentGateway,
	trm interfaces.TxManager,
	notifier interfaces.Notifier,
	reconciler orderEnqueuer,
	metrics *metrics.Metrics,
	config *config.Config,
	logger logger.Logger,
) (*PaymentService, error) {
	if orderRepo == nil {
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
	if metrics == nil {
		return nil, errors.New("nil dependency: metrics")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &PaymentService{
		orderRepo:  orderRepo,
		gateway:    gateway,
		trm:        trm,
		notifier:   notifier,
		reconciler: reconciler,
		metrics:    metrics,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}, nil
}

var _ interfaces.PaymentService = (*PaymentService)(nil)

// HandleWebhook verifies a provider callback and applies it to the referenced
// order. A nil error means the provider must not retry.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, checksum string) error {
	event, err := s.gateway.VerifyEvent(body, checksum)
	if err != nil {
		s.logger.With(ctx, "checksum", checksum, "payload", string(body)).
			Warnf("webhook rejected: %s", err)
		s.metrics.Webhooks.WithLabelValues("rejected").Inc()
		return err
	}

	log := s.logger.With(ctx,
		"event", event.Event,
		"transaction_id", event.TransactionID,
		"reference", event.Reference,
		"status", event.Status,
	)

	if event.Event != EventTransactionUpdated {
		log.Debug("webhook ignored: unsupported event")
		s.metrics.Webhooks.WithLabelValues("ignored").Inc()
		return nil
	}

	outcome := event.Outcome()
	if outcome == entities.OutcomeInProgress {
		log.Info("webhook acknowledged: transaction still in progress")
		s.metrics.Webhooks.WithLabelValues(outcome.String()).Inc()
		return nil
	}

	orderID, err := uuid.Parse(event.Reference)
	if err != nil {
		log.Warn("webhook acknowledged: reference is not an order id")
		s.metrics.Webhooks.WithLabelValues("unknown_reference").Inc()
		return nil
	}

	order, changed, err := s.apply(ctx, orderID, event, outcome)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			log.Warn("webhook acknowledged: unknown order")
			s.metrics.Webhooks.WithLabelValues("unknown_reference").Inc()
			return nil
		case errors.Is(err, errs.ErrInvalidTransition):
			log.Warnf("webhook acknowledged without effect: %s", err)
			s.metrics.Webhooks.WithLabelValues("stale").Inc()
			return nil
		}
		log.Errorf("apply webhook to order %s: %s", orderID, err)
		s.metrics.Webhooks.WithLabelValues("error").Inc()
		return fmt.Errorf("apply webhook to order %s: %w", orderID, err)
	}

	s.metrics.Webhooks.WithLabelValues(outcome.String()).Inc()

	if !changed {
		log.Infof("webhook replay: order %s already %s", order.ID, order.Status)
		return nil
	}

	log.Infof("order %s is now %s", order.ID, order.Status)

	if outcome == entities.OutcomePaid {
		s.publish(ctx, entities.NewOrderEvent(entities.EventOrderPaid, order, s.now()))

		if order.NeedsReconciliation() && s.reconciler != nil {
			s.reconciler.Enqueue(order.ID)
		}
	}

	return nil
}

// apply locks the order and transitions it only when the status differs.
func (s *PaymentService) apply(
	ctx context.Context,
	id uuid.UUID,
	event *entities.PaymentEvent,
	outcome entities.PaymentOutcome,
) (*entities.Order, bool, error) {
	var (
		order   *entities.Order
		changed bool
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error

		order, err = s.orderRepo.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if !order.Total.IsZero() && order.AmountInCents() != event.AmountInCents {
			s.logger.With(ctx, "order_id", order.ID).Warnf(
				"amount mismatch: order %d cents, provider %d cents",
				order.AmountInCents(), event.AmountInCents)
		}

		now := s.now().UTC()

		switch outcome {
		case entities.OutcomePaid:
			changed, err = order.MarkPaid(s.paidCurrency(ctx, event), now)
		case entities.OutcomeDeclined:
			changed, err = order.Decline(now)
		}
		if err != nil || !changed {
			return err
		}

		return s.orderRepo.UpdateStatus(ctx, order)
	})

	return order, changed, err
}

// paidCurrency prefers the provider's currency and falls back to the
// platform default when the provider sent something unsupported.
func (s *PaymentService) paidCurrency(ctx context.Context, event *entities.PaymentEvent) entities.Currency {
	c, err := entities.ParseCurrency(event.Currency)
	if err == nil {
		return c
	}

	s.logger.With(ctx, "reference", event.Reference).
		Warnf("provider currency %q unsupported, using %s", event.Currency, s.config.Checkout.DefaultCurrency)

	c, _ = entities.ParseCurrency(s.config.Checkout.DefaultCurrency)
	return c
}

func (s *PaymentService) publish(ctx context.Context, event entities.OrderEvent) {
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.With(ctx, "order_id", event.OrderID).
			Errorf("publish %s: %s", event.Type, err)
	}
}
