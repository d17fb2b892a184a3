package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/limiter"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// ReconciliationService restores money and currency of paid orders that were
// left incomplete. It never touches order status.
type ReconciliationService struct {
	orderRepo    repositories.OrderRepository
	discountRepo repositories.DiscountRepository
	trm          interfaces.TxManager
	limiter      *limiter.Limiter
	metrics      *metrics.Metrics
	config       *config.Config
	logger       logger.Logger
	taxRate      decimal.Decimal
	currency     entities.Currency
	cron         *cron.Cron
	queue        chan uuid.UUID
	wg           *sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	closeDone    func()
	now          func() time.Time
}

func NewReconciliationService(
	orderRepo repositories.OrderRepository,
	discountRepo repositories.DiscountRepository,
	trm interfaces.TxManager,
	metrics *metrics.Metrics,
	config *config.Config,
	logger logger.Logger,
) (*ReconciliationService, error) {
	if orderRepo == nil {
		return nil, errors.New("nil dependency: order repository")
	}
	if discountRepo == nil {
		return nil, errors.New("nil dependency: discount repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if metrics == nil {
		return nil, errors.New("nil dependency: metrics")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	currency, err := entities.ParseCurrency(config.Checkout.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("default currency: %w", err)
	}

	cfg := config.Reconciliation
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	return &ReconciliationService{
		orderRepo:    orderRepo,
		discountRepo: discountRepo,
		trm:          trm,
		limiter:      limiter.New(cfg.RatePerSecond, cfg.Workers),
		metrics:      metrics,
		config:       config,
		logger:       logger,
		taxRate:      decimal.NewFromFloat(config.Checkout.TaxRate),
		currency:     currency,
		cron: cron.New(
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
		queue:     make(chan uuid.UUID, cfg.QueueSize),
		wg:        &sync.WaitGroup{},
		ctx:       ctx,
		cancel:    cancel,
		done:      done,
		closeDone: sync.OnceFunc(func() { close(done) }),
		now:       time.Now,
	}, nil
}

var _ interfaces.ReconciliationService = (*ReconciliationService)(nil)

// Run starts the on-demand workers and the scheduled scan.
func (s *ReconciliationService) Run() error {
	if spec := s.config.Reconciliation.Schedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.scheduled); err != nil {
			return fmt.Errorf("schedule reconciliation %q: %w", spec, err)
		}
	}

	for i := 0; i < s.config.Reconciliation.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.work()
		}()
	}

	s.cron.Start()

	return nil
}

// Stop waits for in-flight orders up to the shutdown timeout. Queued orders
// that were not started are picked up by the next scheduled run.
func (s *ReconciliationService) Stop() {
	cronDone := s.cron.Stop()
	s.closeDone()

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		s.wg.Wait()
		<-cronDone.Done()
	}()

	select {
	case <-time.After(s.config.HTTPServer.ShutdownTimeout):
		s.logger.Error("reconciliation service stop: shutdown timeout exceeded")
	case <-ready:
	}

	s.cancel()
}

// Enqueue never blocks. A full queue drops the order, the scheduled scan
// will still find it.
func (s *ReconciliationService) Enqueue(id uuid.UUID) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.queue <- id:
		s.metrics.QueueDepth.Set(float64(len(s.queue)))
		return true
	default:
		s.logger.Warnf("reconciliation queue full, order %s left for the scheduled run", id)
		return false
	}
}

// RunOnce scans every reconcilable order and processes them on a bounded
// pool. Failed orders are counted and left for the next run.
func (s *ReconciliationService) RunOnce(ctx context.Context) (*entities.ReconciliationReport, error) {
	cfg := s.config.Reconciliation

	var scanned, updated, failed atomic.Int64

	jobs := make(chan uuid.UUID, cfg.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				changed, err := s.process(ctx, id)
				switch {
				case err != nil:
					failed.Add(1)
				case changed:
					updated.Add(1)
				}
			}
		}()
	}

	listErr := s.feed(ctx, jobs, &scanned)

	close(jobs)
	wg.Wait()

	report := &entities.ReconciliationReport{
		Scanned: int(scanned.Load()),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}

	if listErr != nil {
		return report, fmt.Errorf("list reconcilable orders: %w", listErr)
	}

	return report, nil
}

// feed pages through candidates by id so that orders fixed meanwhile do not
// shift the window.
func (s *ReconciliationService) feed(ctx context.Context, jobs chan<- uuid.UUID, scanned *atomic.Int64) error {
	batch := s.config.Reconciliation.BatchSize
	after := uuid.Nil

	for {
		ids, err := s.orderRepo.ListReconcilable(ctx, after, batch)
		if err != nil {
			return err
		}

		for _, id := range ids {
			select {
			case jobs <- id:
				scanned.Add(1)
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return nil
			}
		}

		if len(ids) < batch {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

// Reconcile recomputes money of a single order. It reports whether anything
// was written.
func (s *ReconciliationService) Reconcile(ctx context.Context, id uuid.UUID) (*entities.Order, bool, error) {
	var (
		order   *entities.Order
		changed bool
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error

		if order, err = s.orderRepo.GetOrderForUpdate(ctx, id); err != nil {
			return err
		}
		if !order.NeedsReconciliation() {
			return nil
		}

		if order.Items, err = s.orderRepo.GetItems(ctx, id); err != nil {
			return fmt.Errorf("get items: %w", err)
		}

		discount, err := s.discount(ctx, order)
		if err != nil {
			return err
		}

		before := snapshotMoney(order)

		order.ApplyPricing(entities.Price(order.Items, discount, s.taxRate))
		if !order.Currency.Known() {
			order.Currency = s.currency
		}

		if before.equal(snapshotMoney(order)) {
			return nil
		}

		changed = true
		order.UpdatedAt = s.now().UTC()

		return s.orderRepo.UpdateMoney(ctx, order)
	})
	if err != nil {
		return nil, false, err
	}

	return order, changed, nil
}

// discount reloads the order's discount by id. Its used and expiry state is
// irrelevant here, the order already redeemed it.
func (s *ReconciliationService) discount(ctx context.Context, order *entities.Order) (*entities.Discount, error) {
	if order.DiscountID == nil {
		return nil, nil
	}

	d, err := s.discountRepo.GetByID(ctx, *order.DiscountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.logger.With(ctx, "order_id", order.ID).
				Warnf("discount %s vanished, pricing without it", *order.DiscountID)
			return nil, nil
		}
		return nil, fmt.Errorf("get discount: %w", err)
	}

	return d, nil
}

func (s *ReconciliationService) process(ctx context.Context, id uuid.UUID) (bool, error) {
	log := s.logger.With(ctx, "order_id", id)

	if err := s.limiter.Wait(ctx); err != nil {
		log.Warnf("reconciliation skipped: %s", err)
		s.metrics.Reconciliation.WithLabelValues("failed").Inc()
		return false, err
	}

	order, changed, err := s.Reconcile(ctx, id)
	if err != nil {
		log.Errorf("reconciliation failed, retrying next run: %s", err)
		s.metrics.Reconciliation.WithLabelValues("failed").Inc()
		return false, err
	}

	if !changed {
		s.metrics.Reconciliation.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	log.Infof("order reconciled: subtotal %s total %s %s",
		order.Subtotal.StringFixed(2), order.Total.StringFixed(2), order.Currency)
	s.metrics.Reconciliation.WithLabelValues("updated").Inc()

	return true, nil
}

func (s *ReconciliationService) work() {
	for {
		select {
		case <-s.done:
			return
		case id := <-s.queue:
			s.metrics.QueueDepth.Set(float64(len(s.queue)))
			_, _ = s.process(s.ctx, id)
		}
	}
}

func (s *ReconciliationService) scheduled() {
	start := s.now()

	report, err := s.RunOnce(s.ctx)
	if err != nil {
		s.logger.Errorf("scheduled reconciliation: %s", err)
	}
	if report != nil && report.Scanned > 0 {
		s.logger.Infof("scheduled reconciliation in %s: scanned %d, updated %d, failed %d",
			time.Since(start).Round(time.Millisecond), report.Scanned, report.Updated, report.Failed)
	}
}

type money struct {
	subtotal, discount, tax, total decimal.Decimal
	currency                       entities.Currency
	lines                          []decimal.Decimal
}

func snapshotMoney(o *entities.Order) money {
	m := money{
		subtotal: o.Subtotal,
		discount: o.Discount,
		tax:      o.Tax,
		total:    o.Total,
		currency: o.Currency,
		lines:    make([]decimal.Decimal, 0, len(o.Items)*3),
	}
	for _, it := range o.Items {
		m.lines = append(m.lines, it.Discount, it.Tax, it.Total)
	}
	return m
}

func (m money) equal(other money) bool {
	if !m.subtotal.Equal(other.subtotal) || !m.discount.Equal(other.discount) ||
		!m.tax.Equal(other.tax) || !m.total.Equal(other.total) ||
		m.currency != other.currency || len(m.lines) != len(other.lines) {
		return false
	}
	for i := range m.lines {
		if !m.lines[i].Equal(other.lines[i]) {
			return false
		}
	}
	return true
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.With(context.Background(), keysAndValues...).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.With(context.Background(), keysAndValues...).Errorf("%s: %s", msg, err)
}
