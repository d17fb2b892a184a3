package entities

import (
	"fmt"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillTo is the optional billing contact captured at checkout.
type BillTo struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

type Order struct {
	ID                uuid.UUID
	Status            OrderStatus
	Origin            Origin
	CustomerID        string
	ShippingAddressID string
	BillingAddressID  string
	BillTo            *BillTo
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	Currency          Currency
	DiscountID        *uuid.UUID
	PlacedIP          string
	PayedAt           *time.Time
	ShippedAt         *time.Time
	CanceledAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []*OrderItem
}

type OrderItem struct {
	ID               int64
	OrderID          uuid.UUID
	ProductVariantID string
	Quantity         int
	Price            decimal.Decimal
	Discount         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
}

func (it *OrderItem) LineSubtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// NewOrder allocates a placed order. Money fields stay zero until ApplyPricing.
func NewOrder(origin Origin, currency Currency, placedIP string, items []*OrderItem) *Order {
	id := uuid.New()
	for _, it := range items {
		it.OrderID = id
	}

	return &Order{
		ID:       id,
		Status:   StatusPlaced,
		Origin:   origin,
		Currency: currency,
		PlacedIP: placedIP,
		Items:    items,
	}
}

// ApplyPricing copies the breakdown onto the order and its items.
func (o *Order) ApplyPricing(b Breakdown) {
	o.Subtotal = b.Subtotal
	o.Discount = b.Discount
	o.Tax = b.Tax
	o.Total = b.Total

	for i, it := range o.Items {
		if i >= len(b.Lines) {
			break
		}
		it.Discount = b.Lines[i].Discount
		it.Tax = b.Lines[i].Tax
		it.Total = b.Lines[i].Total
	}
}

// NeedsReconciliation matches paid orders whose money or currency was never finalized.
func (o *Order) NeedsReconciliation() bool {
	return o.Status == StatusPaid &&
		(!o.Currency.Known() || o.Total.IsZero() || o.Subtotal.IsZero())
}

// AmountInCents converts the total to provider minor units.
func (o *Order) AmountInCents() int64 {
	return o.Total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MarkPaid moves the order to paid. A concrete currency is required and is
// assigned only if the order does not have one yet.
func (o *Order) MarkPaid(currency Currency, at time.Time) (bool, error) {
	if !currency.Known() && !o.Currency.Known() {
		return false, fmt.Errorf("%w: paid order requires a currency", errs.ErrInvalidTransition)
	}

	changed, err := o.transition(StatusPaid, at)
	if err != nil || !changed {
		return changed, err
	}

	if !o.Currency.Known() {
		o.Currency = currency
	}
	if o.PayedAt == nil {
		o.PayedAt = &at
	}

	return true, nil
}

func (o *Order) Decline(at time.Time) (bool, error) {
	return o.transition(StatusDeclined, at)
}

func (o *Order) Cancel(at time.Time) (bool, error) {
	changed, err := o.transition(StatusCanceled, at)
	if changed && o.CanceledAt == nil {
		o.CanceledAt = &at
	}
	return changed, err
}

func (o *Order) Ship(at time.Time) (bool, error) {
	changed, err := o.transition(StatusShipped, at)
	if changed && o.ShippedAt == nil {
		o.ShippedAt = &at
	}
	return changed, err
}

func (o *Order) Deliver(at time.Time) (bool, error) {
	return o.transition(StatusDelivered, at)
}

// transition applies a forward edge. Re-applying the current status is a no-op.
func (o *Order) transition(to OrderStatus, at time.Time) (bool, error) {
	if o.Status == to {
		return false, nil
	}
	if !o.Status.CanTransition(to) {
		return false, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, o.Status, to)
	}

	o.Status = to
	o.UpdatedAt = at

	return true, nil
}
