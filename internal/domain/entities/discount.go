package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	// DiscountFixedNoCharge is consumed like any other code but leaves totals untouched.
	DiscountFixedNoCharge DiscountType = "fixedNoCharge"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFixedNoCharge:
		return true
	}
	return false
}

type Discount struct {
	ID            uuid.UUID
	Code          string
	Type          DiscountType
	Discount      decimal.Decimal
	IsActive      bool
	UsedAt        *time.Time
	UsedByOrderID *uuid.UUID
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

func NewDiscount(code string, t DiscountType, magnitude decimal.Decimal, expiresAt time.Time) *Discount {
	return &Discount{
		ID:        uuid.New(),
		Code:      code,
		Type:      t,
		Discount:  magnitude,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
}

// Redeemable reports whether a new checkout may use the code at now.
func (d *Discount) Redeemable(now time.Time) bool {
	return d.IsActive && d.UsedAt == nil && now.Before(d.ExpiresAt)
}

// Amount is the reduction the discount yields on subtotal, never more than subtotal.
func (d *Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	if d == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal

	switch d.Type {
	case DiscountPercentage:
		pct := decimal.Max(decimal.Zero, decimal.Min(d.Discount, decimal.NewFromInt(1)))
		amount = subtotal.Mul(pct)
	case DiscountFixed:
		amount = decimal.Max(decimal.Zero, d.Discount)
	default:
		return decimal.Zero
	}

	return decimal.Min(amount, subtotal).Round(2)
}

// Apply returns the subtotal after the discount effect.
func (d *Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(d.Amount(subtotal))
}
