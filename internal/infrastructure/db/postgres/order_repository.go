package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewOrderRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &OrderRepository{db: db, getter: getter, logger: logger}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

const orderColumns = `
	id, status, origin, customer_id, shipping_address_id, billing_address_id,
	bill_to, subtotal, discount, tax, total, currency, discount_id, placed_ip,
	payed_at, shipped_at, canceled_at, created_at, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, o *entities.Order) error {
	const query = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);
	`

	billTo, err := marshalBillTo(o.BillTo)
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.Status,
		o.Origin,
		o.CustomerID,
		o.ShippingAddressID,
		o.BillingAddressID,
		billTo,
		o.Subtotal,
		o.Discount,
		o.Tax,
		o.Total,
		o.Currency,
		nullUUID(o.DiscountID),
		o.PlacedIP,
		o.PayedAt,
		o.ShippedAt,
		o.CanceledAt,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (r *OrderRepository) CreateItems(ctx context.Context, items []*entities.OrderItem) error {
	const query = `
		INSERT INTO order_items (
			order_id, position, product_variant_id, quantity, price, discount, tax, total
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`

	tx := r.getter.DefaultTrOrDB(ctx, r.db)

	for i, it := range items {
		err := tx.QueryRowContext(ctx, query,
			it.OrderID,
			i,
			it.ProductVariantID,
			it.Quantity,
			it.Price,
			it.Discount,
			it.Tax,
			it.Total,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, mapError(err))
		}
	}

	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	const query = "SELECT" + orderColumns + " FROM orders WHERE id = $1;"

	return r.getOrder(ctx, query, id)
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	const query = "SELECT" + orderColumns + " FROM orders WHERE id = $1 FOR UPDATE;"

	return r.getOrder(ctx, query, id)
}

func (r *OrderRepository) getOrder(ctx context.Context, query string, id uuid.UUID) (*entities.Order, error) {
	order, err := scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]*entities.OrderItem, error) {
	const query = `
		SELECT id, order_id, product_variant_id, quantity, price, discount, tax, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY position;
	`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	items := make([]*entities.OrderItem, 0)

	for rows.Next() {
		it := new(entities.OrderItem)
		err = rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductVariantID,
			&it.Quantity,
			&it.Price,
			&it.Discount,
			&it.Tax,
			&it.Total,
		)
		if err != nil {
			return nil, err
		}

		items = append(items, it)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *entities.Order) error {
	const query = `
		UPDATE orders SET
			status = $2,
			payed_at = $3,
			shipped_at = $4,
			canceled_at = $5,
			currency = CASE WHEN currency = 'unknown' THEN $6 ELSE currency END,
			updated_at = $7
		WHERE id = $1;
	`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		o.ID, o.Status, o.PayedAt, o.ShippedAt, o.CanceledAt, o.Currency, o.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	return expectRow(res, o.ID)
}

func (r *OrderRepository) UpdateMoney(ctx context.Context, o *entities.Order) error {
	const orderQuery = `
		UPDATE orders SET
			subtotal = $2,
			discount = $3,
			tax = $4,
			total = $5,
			currency = $6,
			updated_at = $7
		WHERE id = $1;
	`
	const itemQuery = `
		UPDATE order_items SET discount = $2, tax = $3, total = $4
		WHERE id = $1;
	`

	tx := r.getter.DefaultTrOrDB(ctx, r.db)

	res, err := tx.ExecContext(ctx, orderQuery,
		o.ID, o.Subtotal, o.Discount, o.Tax, o.Total, o.Currency, o.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if err = expectRow(res, o.ID); err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err = tx.ExecContext(ctx, itemQuery, it.ID, it.Discount, it.Tax, it.Total); err != nil {
			return fmt.Errorf("item %d: %w", it.ID, mapError(err))
		}
	}

	return nil
}

func (r *OrderRepository) ListReconcilable(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	const query = `
		SELECT id FROM orders
		WHERE status = 'paid'
			AND (currency = 'unknown' OR total = 0 OR subtotal = 0)
			AND id > $1
		ORDER BY id
		LIMIT $2;
	`

	rows, err := r.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	ids := make([]uuid.UUID, 0, limit)

	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *OrderRepository) Metadata(ctx context.Context) (*entities.OrdersMetadata, error) {
	const countQuery = `
		SELECT status, origin, count(*) FROM orders GROUP BY status, origin;
	`
	const revenueQuery = `
		SELECT currency, sum(total) FROM orders
		WHERE status IN ('paid', 'shipped', 'delivered')
		GROUP BY currency;
	`

	meta := entities.NewOrdersMetadata()

	err := r.each(ctx, countQuery, func(rows *sql.Rows) error {
		var (
			status entities.OrderStatus
			origin entities.Origin
			n      int64
		)
		if err := rows.Scan(&status, &origin, &n); err != nil {
			return err
		}
		meta.Total += n
		meta.ByStatus[status] += n
		meta.ByOrigin[origin] += n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	err = r.each(ctx, revenueQuery, func(rows *sql.Rows) error {
		var (
			currency entities.Currency
			sum      decimal.Decimal
		)
		if err := rows.Scan(&currency, &sum); err != nil {
			return err
		}
		meta.PaidTotals[currency] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sum paid orders: %w", err)
	}

	return meta, nil
}

func (r *OrderRepository) each(ctx context.Context, query string, fn func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	for rows.Next() {
		if err = fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func scanOrder(row *sql.Row) (*entities.Order, error) {
	o := new(entities.Order)

	var billTo []byte
	var discountID uuid.NullUUID
	var payedAt, shippedAt, canceledAt sql.NullTime

	err := row.Scan(
		&o.ID,
		&o.Status,
		&o.Origin,
		&o.CustomerID,
		&o.ShippingAddressID,
		&o.BillingAddressID,
		&billTo,
		&o.Subtotal,
		&o.Discount,
		&o.Tax,
		&o.Total,
		&o.Currency,
		&discountID,
		&o.PlacedIP,
		&payedAt,
		&shippedAt,
		&canceledAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(billTo) > 0 {
		o.BillTo = new(entities.BillTo)
		if err = json.Unmarshal(billTo, o.BillTo); err != nil {
			return nil, fmt.Errorf("decode bill_to: %w", err)
		}
	}
	if discountID.Valid {
		o.DiscountID = &discountID.UUID
	}
	o.PayedAt = timePtr(payedAt)
	o.ShippedAt = timePtr(shippedAt)
	o.CanceledAt = timePtr(canceledAt)

	return o, nil
}

func marshalBillTo(b *entities.BillTo) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bill_to: %w", err)
	}
	return data, nil
}

func expectRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", id, errs.ErrNotFound)
	}
	return nil
}
