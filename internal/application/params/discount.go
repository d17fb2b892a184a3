package params

import (
	"time"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/shopspring/decimal"
)

type CreateDiscount struct {
	Type      entities.DiscountType
	Discount  decimal.Decimal
	ExpiresAt time.Time
}
