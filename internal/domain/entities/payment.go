package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentOutcome is the internal reading of a provider transaction status.
type PaymentOutcome int

const (
	OutcomeInProgress PaymentOutcome = iota
	OutcomePaid
	OutcomeDeclined
)

func (o PaymentOutcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeDeclined:
		return "declined"
	}
	return "in_progress"
}

// MapPaymentStatus maps provider statuses case-insensitively.
func MapPaymentStatus(status string) PaymentOutcome {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "APPROVED":
		return OutcomePaid
	case "DECLINED", "ERROR":
		return OutcomeDeclined
	}
	return OutcomeInProgress
}

// PaymentEvent is a webhook notification that passed signature verification.
type PaymentEvent struct {
	Event         string
	TransactionID string
	Reference     string
	AmountInCents int64
	Currency      string
	Status        string
	PaymentMethod string
	CustomerEmail string
	Environment   string
	Timestamp     int64
}

func (e *PaymentEvent) Outcome() PaymentOutcome {
	return MapPaymentStatus(e.Status)
}

type OrderEventType string

const (
	EventOrderPaid     OrderEventType = "order.paid"
	EventOrderCanceled OrderEventType = "order.canceled"
)

// OrderEvent is published to downstream consumers after a status change commits.
type OrderEvent struct {
	ID         uuid.UUID      `json:"id"`
	Type       OrderEventType `json:"type"`
	OrderID    uuid.UUID      `json:"orderId"`
	Status     OrderStatus    `json:"status"`
	Origin     Origin         `json:"origin"`
	Currency   Currency       `json:"currency"`
	Total      string         `json:"total"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func NewOrderEvent(t OrderEventType, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		ID:         uuid.New(),
		Type:       t,
		OrderID:    o.ID,
		Status:     o.Status,
		Origin:     o.Origin,
		Currency:   o.Currency,
		Total:      o.Total.StringFixed(2),
		OccurredAt: at.UTC(),
	}
}
