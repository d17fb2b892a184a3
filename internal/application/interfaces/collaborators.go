package interfaces

import (
	"context"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
)

// TxManager runs fn in a single transaction. *manager.Manager satisfies it.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Identity answers role questions about an authenticated caller.
type Identity interface {
	HasRole(caller *user.User, roles ...user.Role) bool
}

// AuthService turns a bearer token into a caller.
type AuthService interface {
	GetUserFromToken(ctx context.Context, token string) (*user.User, error)
}

// FeatureGate reports whether a named capability is enabled.
type FeatureGate interface {
	IsEnabled(ctx context.Context, key string) (bool, error)
}

// Notifier publishes order events to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, event entities.OrderEvent) error
	Close() error
}

// PaymentGateway verifies provider callbacks and signs redirect requests.
type PaymentGateway interface {
	VerifyEvent(body []byte, checksum string) (*entities.PaymentEvent, error)
	CheckoutURL(order *entities.Order, currency entities.Currency) (string, error)
}
