package repositories

import (
	"context"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/google/uuid"
)

type DiscountRepository interface {
	GetByCode(ctx context.Context, code string) (*entities.Discount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Discount, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, discount *entities.Discount) error
	// Consume marks the discount used by orderID only if it is still redeemable
	// or already used by that same order. Otherwise it returns errs.ErrDiscountInvalid.
	Consume(ctx context.Context, id, orderID uuid.UUID) error
}
