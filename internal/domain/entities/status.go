package entities

import (
	"fmt"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPlaced    OrderStatus = "placed"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCanceled  OrderStatus = "canceled"
	StatusDeclined  OrderStatus = "declined"
)

// Forward edges of the order state machine. Terminal states have none.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending: {StatusPlaced, StatusCanceled, StatusDeclined},
	StatusPlaced:  {StatusPaid, StatusCanceled, StatusDeclined},
	StatusPaid:    {StatusShipped, StatusCanceled, StatusDeclined},
	StatusShipped: {StatusDelivered, StatusCanceled, StatusDeclined},
}

// CanTransition reports whether the state machine has an edge s -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Settled reports whether the order reached paid or a later fulfillment state.
func (s OrderStatus) Settled() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusDelivered
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case StatusPending, StatusPlaced, StatusPaid, StatusShipped,
		StatusDelivered, StatusCanceled, StatusDeclined:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", errs.ErrInvalidRequest, s)
}
