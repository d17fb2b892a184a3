package entities

import "github.com/shopspring/decimal"

// OrdersMetadata aggregates order counts and settled revenue for dashboards.
type OrdersMetadata struct {
	Total      int64
	ByStatus   map[OrderStatus]int64
	ByOrigin   map[Origin]int64
	PaidTotals map[Currency]decimal.Decimal
}

func NewOrdersMetadata() *OrdersMetadata {
	return &OrdersMetadata{
		ByStatus:   make(map[OrderStatus]int64),
		ByOrigin:   make(map[Origin]int64),
		PaidTotals: make(map[Currency]decimal.Decimal),
	}
}

// ReconciliationReport summarizes one scan over reconcilable orders.
type ReconciliationReport struct {
	Scanned int
	Updated int
	Failed  int
}
