package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestConfig() *config.Config {
	return &config.Config{
		HTTPServer: config.HTTPServer{ShutdownTimeout: 5 * time.Second},
		Checkout:   config.Checkout{TaxRate: 0.19, DefaultCurrency: "COP"},
		Discount:   config.Discount{CodeLength: 8, MaxAttempts: 5},
		Gateway: config.Gateway{
			PublicKey:      "pub_test",
			IntegrityKey:   "integrity_test",
			EventsSecret:   "events_test",
			CheckoutURL:    "https://checkout.example.com/p/",
			LinkExpiration: time.Hour,
		},
		Reconciliation: config.Reconciliation{
			Workers:       2,
			QueueSize:     4,
			BatchSize:     2,
			RatePerSecond: 0,
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Lock in case of t.Parallel call.
type mockOrderRepository struct {
	orders map[uuid.UUID]*entities.Order
	items  map[uuid.UUID][]*entities.OrderItem
	// failures keyed by order id make single orders unprocessable.
	failUpdate   map[uuid.UUID]error
	failItems    error
	moneyUpdates int
	nextItemID   int64
	mu           sync.RWMutex
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders:     make(map[uuid.UUID]*entities.Order),
		items:      make(map[uuid.UUID][]*entities.OrderItem),
		failUpdate: make(map[uuid.UUID]error),
	}
}

func cloneOrder(o *entities.Order) *entities.Order {
	c := *o
	c.Items = nil
	return &c
}

func cloneItems(items []*entities.OrderItem) []*entities.OrderItem {
	res := make([]*entities.OrderItem, len(items))
	for i, it := range items {
		c := *it
		res[i] = &c
	}
	return res
}

// put stores an order with its items as if it was created earlier.
func (m *mockOrderRepository) put(o *entities.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range o.Items {
		m.nextItemID++
		it.ID = m.nextItemID
		it.OrderID = o.ID
	}
	m.orders[o.ID] = cloneOrder(o)
	m.items[o.ID] = cloneItems(o.Items)
}

func (m *mockOrderRepository) get(id uuid.UUID) *entities.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	c := cloneOrder(o)
	c.Items = cloneItems(m.items[id])
	return c
}

func (m *mockOrderRepository) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// snapshot returns a function restoring the current state.
func (m *mockOrderRepository) snapshot() func() {
	m.mu.RLock()
	orders := make(map[uuid.UUID]*entities.Order, len(m.orders))
	for id, o := range m.orders {
		orders[id] = cloneOrder(o)
	}
	items := make(map[uuid.UUID][]*entities.OrderItem, len(m.items))
	for id, it := range m.items {
		items[id] = cloneItems(it)
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.orders = orders
		m.items = items
		m.mu.Unlock()
	}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, o *entities.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return errs.ErrDataConflict
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepository) CreateItems(_ context.Context, items []*entities.OrderItem) error {
	if m.failItems != nil {
		return m.failItems
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.nextItemID++
		it.ID = m.nextItemID
		m.items[it.OrderID] = append(m.items[it.OrderID], cloneItems([]*entities.OrderItem{it})...)
	}
	return nil
}

func (m *mockOrderRepository) GetOrder(_ context.Context, id uuid.UUID) (*entities.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *mockOrderRepository) GetItems(_ context.Context, orderID uuid.UUID) ([]*entities.OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneItems(m.items[orderID]), nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, o *entities.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok {
		return errs.ErrNotFound
	}
	stored.Status = o.Status
	stored.PayedAt = o.PayedAt
	stored.ShippedAt = o.ShippedAt
	stored.CanceledAt = o.CanceledAt
	if !stored.Currency.Known() {
		stored.Currency = o.Currency
	}
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (m *mockOrderRepository) UpdateMoney(_ context.Context, o *entities.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failUpdate[o.ID]; ok {
		return err
	}
	stored, ok := m.orders[o.ID]
	if !ok {
		return errs.ErrNotFound
	}
	stored.Subtotal = o.Subtotal
	stored.Discount = o.Discount
	stored.Tax = o.Tax
	stored.Total = o.Total
	stored.Currency = o.Currency
	stored.UpdatedAt = o.UpdatedAt
	m.items[o.ID] = cloneItems(o.Items)
	m.moneyUpdates++
	return nil
}

func (m *mockOrderRepository) ListReconcilable(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0)
	for id, o := range m.orders {
		if o.NeedsReconciliation() && id.String() > after.String() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *mockOrderRepository) Metadata(_ context.Context) (*entities.OrdersMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta := entities.NewOrdersMetadata()
	for _, o := range m.orders {
		meta.Total++
		meta.ByStatus[o.Status]++
		meta.ByOrigin[o.Origin]++
		if o.Status.Settled() {
			meta.PaidTotals[o.Currency] = meta.PaidTotals[o.Currency].Add(o.Total)
		}
	}
	return meta, nil
}

// Lock in case of t.Parallel call.
type mockDiscountRepository struct {
	discounts map[uuid.UUID]*entities.Discount
	// taken makes CodeExists report every code as used.
	taken      bool
	createErrs  []error
	created     int
	createCalls int
	existsCalls int
	mu          sync.RWMutex
}

func newMockDiscountRepository(ds ...*entities.Discount) *mockDiscountRepository {
	m := &mockDiscountRepository{discounts: make(map[uuid.UUID]*entities.Discount)}
	for _, d := range ds {
		m.discounts[d.ID] = cloneDiscount(d)
	}
	return m
}

func cloneDiscount(d *entities.Discount) *entities.Discount {
	c := *d
	return &c
}

func (m *mockDiscountRepository) get(id uuid.UUID) *entities.Discount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDiscount(m.discounts[id])
}

func (m *mockDiscountRepository) snapshot() func() {
	m.mu.RLock()
	discounts := make(map[uuid.UUID]*entities.Discount, len(m.discounts))
	for id, d := range m.discounts {
		discounts[id] = cloneDiscount(d)
	}
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		m.discounts = discounts
		m.mu.Unlock()
	}
}

func (m *mockDiscountRepository) GetByCode(_ context.Context, code string) (*entities.Discount, error) {
	if code == "PANIC" {
		return nil, errors.New("don't panic!")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.discounts {
		if d.Code == code {
			return cloneDiscount(d), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockDiscountRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discounts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneDiscount(d), nil
}

func (m *mockDiscountRepository) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.taken {
		return true, nil
	}
	for _, d := range m.discounts {
		if d.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDiscountRepository) Create(_ context.Context, d *entities.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	m.discounts[d.ID] = cloneDiscount(d)
	m.created++
	return nil
}

func (m *mockDiscountRepository) Consume(_ context.Context, id, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discounts[id]
	if !ok || !d.IsActive || !time.Now().Before(d.ExpiresAt) {
		return errs.ErrDiscountInvalid
	}
	if d.UsedAt != nil && (d.UsedByOrderID == nil || *d.UsedByOrderID != orderID) {
		return errs.ErrDiscountInvalid
	}
	if d.UsedAt == nil {
		now := time.Now()
		d.UsedAt = &now
	}
	d.UsedByOrderID = &orderID
	return nil
}

// fakeTxManager serializes transactions and rolls the repositories back on error.
type fakeTxManager struct {
	orders    *mockOrderRepository
	discounts *mockDiscountRepository
	mu        sync.Mutex
}

func (f *fakeTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var restore []func()
	if f.orders != nil {
		restore = append(restore, f.orders.snapshot())
	}
	if f.discounts != nil {
		restore = append(restore, f.discounts.snapshot())
	}

	if err := fn(ctx); err != nil {
		for _, r := range restore {
			r()
		}
		return err
	}
	return nil
}

type fakeIdentity struct{}

func (fakeIdentity) HasRole(caller *user.User, roles ...user.Role) bool {
	return caller.HasAnyRole(roles...)
}

// Lock in case of t.Parallel call.
type fakeGate struct {
	enabled bool
	err     error
	calls   int
	mu      sync.Mutex
}

func (g *fakeGate) IsEnabled(_ context.Context, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.enabled, g.err
}

// Lock in case of t.Parallel call.
type fakeEnqueuer struct {
	ids []uuid.UUID
	mu  sync.Mutex
}

func (e *fakeEnqueuer) Enqueue(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return true
}

func (e *fakeEnqueuer) enqueued() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.ids...)
}

// Lock in case of t.Parallel call.
type fakeNotifier struct {
	events []entities.OrderEvent
	err    error
	mu     sync.Mutex
}

func (n *fakeNotifier) Publish(_ context.Context, event entities.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *fakeNotifier) Close() error { return nil }

func (n *fakeNotifier) published() []entities.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entities.OrderEvent(nil), n.events...)
}

// Lock in case of t.Parallel call.
type fakeGateway struct {
	currencies []entities.Currency
	mu         sync.Mutex
}

func (g *fakeGateway) VerifyEvent(_ []byte, _ string) (*entities.PaymentEvent, error) {
	return nil, errs.ErrInvalidSignature
}

func (g *fakeGateway) CheckoutURL(order *entities.Order, currency entities.Currency) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currencies = append(g.currencies, currency)
	return "https://checkout.example.com/p/?reference=" + order.ID.String(), nil
}
