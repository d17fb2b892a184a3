package repositories

import (
	"context"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/google/uuid"
)

// OrderRepository persists orders and their items.
// Write methods join the transaction carried by ctx when there is one.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *entities.Order) error
	CreateItems(ctx context.Context, items []*entities.OrderItem) error
	GetOrder(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	// GetOrderForUpdate locks the order row until the surrounding transaction ends.
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]*entities.OrderItem, error)
	// UpdateStatus writes status, timestamps and currency when it is still unknown.
	UpdateStatus(ctx context.Context, order *entities.Order) error
	// UpdateMoney writes money columns of the order and its items plus currency.
	UpdateMoney(ctx context.Context, order *entities.Order) error
	// ListReconcilable returns ids of paid orders with unknown currency or zero
	// money, ordered by id and starting strictly after the given id.
	ListReconcilable(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	Metadata(ctx context.Context) (*entities.OrdersMetadata, error)
}
