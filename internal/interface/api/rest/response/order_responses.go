package response

import (
	"time"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID               int64           `json:"id"`
	ProductVariantID string          `json:"productVariantId"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	Discount         decimal.Decimal `json:"discount"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
}

// Order is the public projection. The placing IP stays internal.
type Order struct {
	ID                uuid.UUID            `json:"id"`
	Status            entities.OrderStatus `json:"status"`
	Origin            entities.Origin      `json:"origin"`
	CustomerID        string               `json:"customerId,omitempty"`
	ShippingAddressID string               `json:"shippingAddressId,omitempty"`
	BillingAddressID  string               `json:"billingAddressId,omitempty"`
	BillTo            *entities.BillTo     `json:"billTo,omitempty"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	Discount          decimal.Decimal      `json:"discount"`
	Tax               decimal.Decimal      `json:"tax"`
	Total             decimal.Decimal      `json:"total"`
	Currency          entities.Currency    `json:"currency"`
	DiscountID        *uuid.UUID           `json:"discountId,omitempty"`
	PayedAt           *time.Time           `json:"payedAt,omitempty"`
	ShippedAt         *time.Time           `json:"shippedAt,omitempty"`
	CanceledAt        *time.Time           `json:"canceledAt,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
	Items             []OrderItem          `json:"items,omitempty"`
}

func NewOrderFromEntity(e *entities.Order) *Order {
	o := &Order{
		ID:                e.ID,
		Status:            e.Status,
		Origin:            e.Origin,
		CustomerID:        e.CustomerID,
		ShippingAddressID: e.ShippingAddressID,
		BillingAddressID:  e.BillingAddressID,
		BillTo:            e.BillTo,
		Subtotal:          e.Subtotal,
		Discount:          e.Discount,
		Tax:               e.Tax,
		Total:             e.Total,
		Currency:          e.Currency,
		DiscountID:        e.DiscountID,
		PayedAt:           e.PayedAt,
		ShippedAt:         e.ShippedAt,
		CanceledAt:        e.CanceledAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}

	for _, it := range e.Items {
		o.Items = append(o.Items, OrderItem{
			ID:               it.ID,
			ProductVariantID: it.ProductVariantID,
			Quantity:         it.Quantity,
			Price:            it.Price,
			Discount:         it.Discount,
			Tax:              it.Tax,
			Total:            it.Total,
		})
	}

	return o
}

type Metadata struct {
	Total      int64                                 `json:"total"`
	ByStatus   map[entities.OrderStatus]int64        `json:"byStatus"`
	ByOrigin   map[entities.Origin]int64             `json:"byOrigin"`
	PaidTotals map[entities.Currency]decimal.Decimal `json:"paidTotals"`
}

func NewMetadataFromEntity(e *entities.OrdersMetadata) *Metadata {
	return &Metadata{
		Total:      e.Total,
		ByStatus:   e.ByStatus,
		ByOrigin:   e.ByOrigin,
		PaidTotals: e.PaidTotals,
	}
}

type PaymentLink struct {
	URL string `json:"url"`
}

type Reconcile struct {
	Updated bool   `json:"updated"`
	Order   *Order `json:"order"`
}

type Discount struct {
	ID        uuid.UUID             `json:"id"`
	Code      string                `json:"code"`
	Type      entities.DiscountType `json:"type"`
	Discount  decimal.Decimal       `json:"discount"`
	IsActive  bool                  `json:"isActive"`
	ExpiresAt time.Time             `json:"expiresAt"`
	CreatedAt time.Time             `json:"createdAt"`
}

func NewDiscountFromEntity(e *entities.Discount) *Discount {
	return &Discount{
		ID:        e.ID,
		Code:      e.Code,
		Type:      e.Type,
		Discount:  e.Discount,
		IsActive:  e.IsActive,
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt,
	}
}
