package params

import (
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	ProductVariantID string
	Quantity         int
	Price            decimal.Decimal
	// Discount and Tax are client hints only. Totals are always recomputed.
	Discount decimal.Decimal
	Tax      decimal.Decimal
}

type Checkout struct {
	Caller            *user.User
	Origin            entities.Origin
	PlacedIP          string
	ShippingAddressID string
	BillingAddressID  string
	BillTo            *entities.BillTo
	DiscountCode      string
	Items             []CheckoutItem
}
