package entities

import "github.com/shopspring/decimal"

// Breakdown is the result of pricing a set of items.
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Lines    []Line
}

// Line is the priced form of a single order item.
type Line struct {
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// MaxAmount is the exclusive upper bound of every stored money value.
var MaxAmount = decimal.New(1, 12)

var cent = decimal.New(1, -2)

// Price computes order money from frozen item prices, the optional discount
// and the tax rate. Tax is charged on the discounted subtotal. Checkout and
// reconciliation both go through here so that recomputation is idempotent.
//
// Discount and tax are spread over the lines by weight, so line totals always
// add up to the order total.
func Price(items []*OrderItem, d *Discount, taxRate decimal.Decimal) Breakdown {
	b := Breakdown{Lines: make([]Line, len(items))}

	gross := make([]decimal.Decimal, len(items))
	for i, it := range items {
		gross[i] = it.LineSubtotal().Round(2)
		b.Subtotal = b.Subtotal.Add(gross[i])
	}
	b.Subtotal = b.Subtotal.Round(2)

	b.Discount = d.Amount(b.Subtotal)
	net := b.Subtotal.Sub(b.Discount)
	b.Tax = net.Mul(taxRate).Round(2)
	b.Total = net.Add(b.Tax)

	discounts := allocate(b.Discount, gross, gross)

	nets := make([]decimal.Decimal, len(items))
	for i := range items {
		nets[i] = gross[i].Sub(discounts[i])
	}
	taxes := allocate(b.Tax, nets, nil)

	for i := range items {
		b.Lines[i] = Line{
			Discount: discounts[i],
			Tax:      taxes[i],
			Total:    nets[i].Add(taxes[i]),
		}
	}

	return b
}

// allocate splits a cent amount over weights proportionally. Shares are
// floored to cents and the leftover cents go to the first parts still below
// their cap, so the parts sum to amount exactly. A nil caps means unbounded.
func allocate(amount decimal.Decimal, weights, caps []decimal.Decimal) []decimal.Decimal {
	parts := make([]decimal.Decimal, len(weights))
	for i := range parts {
		parts[i] = decimal.Zero
	}

	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if !amount.IsPositive() || !total.IsPositive() {
		return parts
	}

	left := amount
	for i, w := range weights {
		parts[i] = amount.Mul(w).Div(total).RoundFloor(2)
		if caps != nil {
			parts[i] = decimal.Min(parts[i], caps[i])
		}
		left = left.Sub(parts[i])
	}

	for left.IsPositive() {
		moved := false
		for i := range parts {
			if !left.IsPositive() {
				break
			}
			if caps != nil && parts[i].GreaterThanOrEqual(caps[i]) {
				continue
			}
			if caps == nil && !weights[i].IsPositive() {
				continue
			}
			parts[i] = parts[i].Add(cent)
			left = left.Sub(cent)
			moved = true
		}
		if !moved {
			break
		}
	}

	return parts
}
