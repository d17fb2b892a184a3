package interfaces

import (
	"context"

	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/google/uuid"
)

type CheckoutService interface {
	Checkout(ctx context.Context, params *params.Checkout) (*entities.Order, error)
}

type OrderService interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	Anulate(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.OrderStatus) (*entities.Order, error)
	Metadata(ctx context.Context) (*entities.OrdersMetadata, error)
	PaymentLink(ctx context.Context, id uuid.UUID) (string, error)
}

type PaymentService interface {
	HandleWebhook(ctx context.Context, body []byte, checksum string) error
}

type DiscountService interface {
	Resolve(ctx context.Context, code string) (*entities.Discount, error)
	Generate(ctx context.Context) (string, error)
	Create(ctx context.Context, params *params.CreateDiscount) (*entities.Discount, error)
}

type ReconciliationService interface {
	// Enqueue schedules a single order without blocking. It reports whether the
	// order was accepted by the queue.
	Enqueue(id uuid.UUID) bool
	Reconcile(ctx context.Context, id uuid.UUID) (*entities.Order, bool, error)
	RunOnce(ctx context.Context) (*entities.ReconciliationReport, error)
}
