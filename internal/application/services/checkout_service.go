package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlagPOSCheckout gates checkouts from point-of-sale origins.
const FlagPOSCheckout = "pos_checkout"

var posRoles = []user.Role{user.RoleManager, user.RoleAdmin, user.RolePOS}

// orderEnqueuer receives orders for on-demand reconciliation.
type orderEnqueuer interface {
	Enqueue(id uuid.UUID) bool
}

type CheckoutService struct {
	orderRepo  repositories.OrderRepository
	discounts  interfaces.DiscountService
	discRepo   repositories.DiscountRepository
	trm        interfaces.TxManager
	identity   interfaces.Identity
	gate       interfaces.FeatureGate
	reconciler orderEnqueuer
	metrics    *metrics.Metrics
	config     *config.Config
	logger     logger.Logger
	taxRate    decimal.Decimal
	now        func() time.Time
}

func NewCheckoutService(
	orderRepo repositories.OrderRepository,
	discountRepo repositories.DiscountRepository,
	discounts interfaces.DiscountService,
	trm interfaces.TxManager,
	identity interfaces.Identity,
	gate interfaces.FeatureGate,
	reconciler orderEnqueuer,
	metrics *metrics.Metrics,
	config *config.Config,
	logger logger.Logger,
) (*CheckoutService, error) {
	if orderRepo == nil {
		return nil, errors.New("nil dependency: order repository")
	}
	if discountRepo == nil {
		return nil, errors.New("nil dependency: discount repository")
	}
	if discounts == nil {
		return nil, errors.New("nil dependency: discount service")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if identity == nil {
		return nil, errors.New("nil dependency: identity")
	}
	if gate == nil {
		return nil, errors.New("nil dependency: feature gate")
	}
	if metrics == nil {
		return nil, errors.New("nil dependency: metrics")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &CheckoutService{
		orderRepo:  orderRepo,
		discRepo:   discountRepo,
		discounts:  discounts,
		trm:        trm,
		identity:   identity,
		gate:       gate,
		reconciler: reconciler,
		metrics:    metrics,
		config:     config,
		logger:     logger,
		taxRate:    decimal.NewFromFloat(config.Checkout.TaxRate),
		now:        time.Now,
	}, nil
}

var _ interfaces.CheckoutService = (*CheckoutService)(nil)

// Checkout validates the cart, prices it and persists the order together with
// its items and the discount redemption in one transaction.
func (s *CheckoutService) Checkout(ctx context.Context, p *params.Checkout) (*entities.Order, error) {
	order, err := s.checkout(ctx, p)

	origin := "unknown"
	if p != nil {
		origin = string(p.Origin)
	}
	s.metrics.Checkouts.WithLabelValues(origin, checkoutResult(err)).Inc()

	return order, err
}

func (s *CheckoutService) checkout(ctx context.Context, p *params.Checkout) (*entities.Order, error) {
	if err := validateCheckout(p); err != nil {
		return nil, err
	}

	if p.Origin.IsPOS() {
		if err := s.authorizePOS(ctx, p.Caller); err != nil {
			return nil, err
		}
	}

	var discount *entities.Discount
	if p.DiscountCode != "" {
		d, err := s.discounts.Resolve(ctx, p.DiscountCode)
		if err != nil {
			return nil, err
		}
		discount = d
	}

	order := s.newOrder(p)
	order.ApplyPricing(entities.Price(order.Items, discount, s.taxRate))
	if order.Subtotal.GreaterThanOrEqual(entities.MaxAmount) || order.Total.GreaterThanOrEqual(entities.MaxAmount) {
		return nil, errs.NewValidationError("items", "order amount is out of range")
	}
	if discount != nil {
		order.DiscountID = &discount.ID
	}

	log := s.logger.With(ctx, "order_id", order.ID, "origin", order.Origin)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.orderRepo.CreateItems(ctx, order.Items); err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		if discount != nil {
			if err := s.discRepo.Consume(ctx, discount.ID, order.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrDiscountInvalid) {
			log.Infof("discount %s lost redemption race: %s", discount.Code, err)
			return nil, err
		}
		log.Errorf("checkout failed: %s", err)
		return nil, fmt.Errorf("checkout order %s: %w", order.ID, err)
	}

	log.Infof("order placed: total %s %s", order.Total.StringFixed(2), order.Currency)

	if s.reconciler != nil {
		s.reconciler.Enqueue(order.ID)
	}

	return order, nil
}

// authorizePOS fails closed. The caller only learns that access was denied.
func (s *CheckoutService) authorizePOS(ctx context.Context, caller *user.User) error {
	log := s.logger.With(ctx)

	if caller == nil || !s.identity.HasRole(caller, posRoles...) {
		log.Warn("pos checkout denied: caller lacks a pos capable role")
		return errs.ErrForbidden
	}

	enabled, err := s.gate.IsEnabled(ctx, FlagPOSCheckout)
	if err != nil {
		log.Errorf("pos checkout denied: feature gate lookup failed: %s", err)
		return errs.ErrForbidden
	}
	if !enabled {
		log.Warnf("pos checkout denied: flag %s disabled", FlagPOSCheckout)
		return errs.ErrForbidden
	}

	return nil
}

func (s *CheckoutService) newOrder(p *params.Checkout) *entities.Order {
	items := make([]*entities.OrderItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = &entities.OrderItem{
			ProductVariantID: it.ProductVariantID,
			Quantity:         it.Quantity,
			Price:            it.Price,
		}
	}

	// Web orders get their currency from reconciliation or payment.
	currency := entities.CurrencyUnknown
	if p.Origin.IsPOS() {
		if c, err := entities.ParseCurrency(s.config.Checkout.DefaultCurrency); err == nil {
			currency = c
		}
	}

	order := entities.NewOrder(p.Origin, currency, p.PlacedIP, items)
	order.ShippingAddressID = p.ShippingAddressID
	order.BillingAddressID = p.BillingAddressID
	order.BillTo = p.BillTo
	if p.Caller != nil {
		order.CustomerID = p.Caller.ID
	}

	now := s.now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	return order
}

func validateCheckout(p *params.Checkout) error {
	if p == nil {
		return errs.NewValidationError("body", "is required")
	}
	switch p.Origin {
	case entities.OriginWeb, entities.OriginPOSCash, entities.OriginPOSCard:
	default:
		return errs.NewValidationError("origin", "must be one of web, posCash, posCard")
	}
	if len(p.Items) == 0 {
		return errs.NewValidationError("items", "must not be empty")
	}

	for i, it := range p.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.ProductVariantID == "" {
			return errs.NewValidationError(field+".productVariantId", "is required")
		}
		if it.Quantity <= 0 || it.Quantity > math.MaxInt32 {
			return errs.NewValidationError(field+".quantity", "must be a positive 32-bit integer")
		}
		if it.Price.IsNegative() {
			return errs.NewValidationError(field+".price", "must not be negative")
		}
		if !it.Price.Equal(it.Price.Round(2)) {
			return errs.NewValidationError(field+".price", "must have at most 2 decimal places")
		}
		if it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).GreaterThanOrEqual(entities.MaxAmount) {
			return errs.NewValidationError(field+".price", "line amount is out of range")
		}
	}

	return nil
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, errs.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrDiscountInvalid):
		return "discount_invalid"
	}
	return "error"
}
