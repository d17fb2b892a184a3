package rest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/identity"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/middleware"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Lock in case of t.Parallel call.
type mockCheckoutService struct {
	last *params.Checkout
	err  error
	mu   sync.Mutex
}

func (m *mockCheckoutService) Checkout(_ context.Context, p *params.Checkout) (*entities.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = p
	if m.err != nil {
		return nil, m.err
	}
	items := make([]*entities.OrderItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = &entities.OrderItem{ProductVariantID: it.ProductVariantID, Quantity: it.Quantity, Price: it.Price}
	}
	o := entities.NewOrder(p.Origin, entities.CurrencyUnknown, p.PlacedIP, items)
	o.ApplyPricing(entities.Price(o.Items, nil, decimal.RequireFromString("0.19")))
	if p.Caller != nil {
		o.CustomerID = p.Caller.ID
	}
	return o, nil
}

func (m *mockCheckoutService) params() *params.Checkout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type mockOrderService struct {
	order *entities.Order
	link  string
	err   error
}

func (m *mockOrderService) GetOrder(_ context.Context, _ uuid.UUID) (*entities.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) Anulate(_ context.Context, _ uuid.UUID) (*entities.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) UpdateStatus(_ context.Context, _ uuid.UUID, _ entities.OrderStatus) (*entities.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) Metadata(_ context.Context) (*entities.OrdersMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	meta := entities.NewOrdersMetadata()
	meta.Total = 1
	meta.ByStatus[entities.StatusPaid] = 1
	return meta, nil
}

func (m *mockOrderService) PaymentLink(_ context.Context, _ uuid.UUID) (string, error) {
	return m.link, m.err
}

type mockReconciler struct {
	order *entities.Order
}

func (m *mockReconciler) Enqueue(_ uuid.UUID) bool { return true }

func (m *mockReconciler) Reconcile(_ context.Context, _ uuid.UUID) (*entities.Order, bool, error) {
	return m.order, true, nil
}

func (m *mockReconciler) RunOnce(_ context.Context) (*entities.ReconciliationReport, error) {
	return &entities.ReconciliationReport{}, nil
}

type mockPaymentService struct {
	body     []byte
	checksum string
	err      error
	mu       sync.Mutex
}

func (m *mockPaymentService) HandleWebhook(_ context.Context, body []byte, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	m.checksum = checksum
	return m.err
}

type mockDiscountService struct {
	err error
}

func (m *mockDiscountService) Resolve(_ context.Context, _ string) (*entities.Discount, error) {
	return nil, m.err
}

func (m *mockDiscountService) Generate(_ context.Context) (string, error) {
	return "ABCD1234", m.err
}

func (m *mockDiscountService) Create(_ context.Context, p *params.CreateDiscount) (*entities.Discount, error) {
	if m.err != nil {
		return nil, m.err
	}
	return entities.NewDiscount("ABCD1234", p.Type, p.Discount, p.ExpiresAt), nil
}

type testServer struct {
	router    *chi.Mux
	identity  *identity.Service
	checkout  *mockCheckoutService
	orders    *mockOrderService
	payments  *mockPaymentService
	discounts *mockDiscountService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		HTTPServer: config.HTTPServer{MaxBodyBytes: 1 << 20},
		JWT:        config.JWT{SigningKey: "test-signing-key"},
	}
	log := logger.NewForTest()

	identityService, err := identity.New(cfg)
	require.NoError(t, err)

	s := &testServer{
		router:    InitChi(cfg, metrics.New(), log),
		identity:  identityService,
		checkout:  &mockCheckoutService{},
		orders:    &mockOrderService{},
		payments:  &mockPaymentService{},
		discounts: &mockDiscountService{},
	}

	authenticated := ChiServerOptions{
		BaseRouter:  s.router,
		Middlewares: []MiddlewareFunc{middleware.Middleware(identityService)},
	}

	NewCheckoutController(s.checkout, middleware.Optional(identityService), log, authenticated)
	NewOrderController(s.orders, &mockReconciler{order: sampleOrder()}, identityService, log, authenticated)
	NewDiscountController(s.discounts, identityService, log, authenticated)
	NewWebhookController(s.payments, log, ChiServerOptions{BaseRouter: s.router})

	return s
}

func (s *testServer) token(t *testing.T, roles ...user.Role) string {
	t.Helper()

	token, err := s.identity.BuildToken("user-1", roles, time.Hour)
	require.NoError(t, err)

	return token
}

func sampleOrder() *entities.Order {
	o := entities.NewOrder(entities.OriginWeb, entities.CurrencyCOP, "198.51.100.4", []*entities.OrderItem{
		{ProductVariantID: "variant-1", Quantity: 2, Price: decimal.RequireFromString("100")},
	})
	o.ApplyPricing(entities.Price(o.Items, nil, decimal.RequireFromString("0.19")))
	return o
}
