package request

import (
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	ProductVariantID string          `json:"productVariantId"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	Discount         decimal.Decimal `json:"discount"`
	Tax              decimal.Decimal `json:"tax"`
}

type BillTo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

// Checkout defines the body of both checkout routes.
type Checkout struct {
	ShippingAddressID string         `json:"shippingAddressId"`
	BillingAddressID  string         `json:"billingAddressId"`
	BillTo            *BillTo        `json:"billTo"`
	Items             []CheckoutItem `json:"items"`
	DiscountCode      string         `json:"discountCode"`
}

func (c *Checkout) ToParams(origin entities.Origin) *params.Checkout {
	p := &params.Checkout{
		Origin:            origin,
		ShippingAddressID: c.ShippingAddressID,
		BillingAddressID:  c.BillingAddressID,
		DiscountCode:      c.DiscountCode,
		Items:             make([]params.CheckoutItem, len(c.Items)),
	}

	if c.BillTo != nil {
		p.BillTo = &entities.BillTo{
			Name:     c.BillTo.Name,
			Email:    c.BillTo.Email,
			Phone:    c.BillTo.Phone,
			Document: c.BillTo.Document,
		}
	}

	for i, it := range c.Items {
		p.Items[i] = params.CheckoutItem{
			ProductVariantID: it.ProductVariantID,
			Quantity:         it.Quantity,
			Price:            it.Price,
			Discount:         it.Discount,
			Tax:              it.Tax,
		}
	}

	return p
}

// Anulate defines the body of DELETE /orders/anulate.
type Anulate struct {
	ID string `json:"id"`
}

// UpdateStatus defines the body of PATCH /orders/{id}/status.
type UpdateStatus struct {
	Status string `json:"status"`
}

// CreateDiscount defines the body of POST /discounts.
type CreateDiscount struct {
	Type      string          `json:"type"`
	Discount  decimal.Decimal `json:"discount"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
