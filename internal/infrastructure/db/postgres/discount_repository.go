package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/google/uuid"
)

type DiscountRepository struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewDiscountRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*DiscountRepository, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &DiscountRepository{db: db, getter: getter, logger: logger}, nil
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

const discountColumns = `
	id, code, type, discount, is_active, used_at, used_by_order_id, expires_at, created_at`

func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*entities.Discount, error) {
	const query = "SELECT" + discountColumns + " FROM discounts WHERE code = $1;"

	d, err := scanDiscount(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("discount %s: %w", code, errs.ErrNotFound)
		}
		return nil, err
	}

	return d, nil
}

func (r *DiscountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Discount, error) {
	const query = "SELECT" + discountColumns + " FROM discounts WHERE id = $1;"

	d, err := scanDiscount(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("discount %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}

	return d, nil
}

func (r *DiscountRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM discounts WHERE code = $1);"

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *DiscountRepository) Create(ctx context.Context, d *entities.Discount) error {
	const query = `
		INSERT INTO discounts (id, code, type, discount, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		d.ID, d.Code, d.Type, d.Discount, d.IsActive, d.ExpiresAt, d.CreatedAt)
	if err != nil {
		return mapError(err)
	}

	return nil
}

// Consume is a compare-and-set on used_at. Two checkouts racing for the same
// code serialize on the row and only the first one matches.
func (r *DiscountRepository) Consume(ctx context.Context, id, orderID uuid.UUID) error {
	const query = `
		UPDATE discounts SET
			used_at = COALESCE(used_at, now()),
			used_by_order_id = $2
		WHERE id = $1
			AND is_active
			AND expires_at > now()
			AND (used_at IS NULL OR used_by_order_id = $2);
	`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id, orderID)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: discount %s is no longer redeemable", errs.ErrDiscountInvalid, id)
	}

	return nil
}

func scanDiscount(row *sql.Row) (*entities.Discount, error) {
	d := new(entities.Discount)

	var usedAt sql.NullTime
	var usedBy uuid.NullUUID

	err := row.Scan(
		&d.ID,
		&d.Code,
		&d.Type,
		&d.Discount,
		&d.IsActive,
		&usedAt,
		&usedBy,
		&d.ExpiresAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.UsedAt = timePtr(usedAt)
	if usedBy.Valid {
		d.UsedByOrderID = &usedBy.UUID
	}

	return d, nil
}
