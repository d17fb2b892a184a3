package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/repositories"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/shopspring/decimal"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// createAttempts bounds inserts lost to a concurrent writer. Each attempt
// already searched for a free code up to Discount.MaxAttempts times.
const createAttempts = 3

type DiscountService struct {
	repo   repositories.DiscountRepository
	config *config.Config
	logger logger.Logger
	now    func() time.Time
}

func NewDiscountService(
	repo repositories.DiscountRepository,
	config *config.Config,
	logger logger.Logger,
) (*DiscountService, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: discount repository")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &DiscountService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

var _ interfaces.DiscountService = (*DiscountService)(nil)

// Resolve returns a discount that a new checkout may redeem.
func (s *DiscountService) Resolve(ctx context.Context, code string) (*entities.Discount, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", errs.ErrDiscountInvalid)
	}

	d, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown code %s", errs.ErrDiscountInvalid, code)
		}
		return nil, fmt.Errorf("get discount %s: %w", code, err)
	}

	if !d.Redeemable(s.now()) {
		return nil, fmt.Errorf("%w: code %s is inactive, used or expired", errs.ErrDiscountInvalid, code)
	}

	return d, nil
}

// Generate returns a code not yet taken. It gives up after the configured
// number of collisions.
func (s *DiscountService) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.config.Discount.MaxAttempts; attempt++ {
		code, err := randomCode(s.config.Discount.CodeLength)
		if err != nil {
			return "", err
		}

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}

		s.logger.Debugf("discount code collision on attempt %d", attempt+1)
	}

	return "", fmt.Errorf("%w: %d attempts", errs.ErrCodeSpaceExhausted, s.config.Discount.MaxAttempts)
}

// Create stores a new active discount under a generated code.
func (s *DiscountService) Create(ctx context.Context, p *params.CreateDiscount) (*entities.Discount, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}

	// A concurrent insert may still take the code between the check and the
	// insert, the unique index reports it as a conflict.
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := s.Generate(ctx)
		if err != nil {
			return nil, err
		}

		d := entities.NewDiscount(code, p.Type, p.Discount, p.ExpiresAt.UTC())
		d.CreatedAt = s.now().UTC()

		err = s.repo.Create(ctx, d)
		if err == nil {
			s.logger.Infof("discount %s created: %s %s", d.Code, d.Type, d.Discount)
			return d, nil
		}
		if !errors.Is(err, errs.ErrDataConflict) {
			return nil, fmt.Errorf("create discount: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %d inserts conflicted", errs.ErrCodeSpaceExhausted, createAttempts)
}

func (s *DiscountService) validate(p *params.CreateDiscount) error {
	if p == nil {
		return errs.NewValidationError("body", "is required")
	}
	if !p.Type.Valid() {
		return errs.NewValidationError("type", "must be one of percentage, fixed, fixedNoCharge")
	}
	if p.Discount.IsNegative() {
		return errs.NewValidationError("discount", "must not be negative")
	}
	if p.Type == entities.DiscountPercentage && p.Discount.GreaterThan(decimal.NewFromInt(1)) {
		return errs.NewValidationError("discount", "percentage must be a fraction between 0 and 1")
	}
	if p.Type != entities.DiscountFixedNoCharge && p.Discount.IsZero() {
		return errs.NewValidationError("discount", "must be positive")
	}
	if !p.ExpiresAt.After(s.now()) {
		return errs.NewValidationError("expiresAt", "must be in the future")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomCode(n int) (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))

	var b strings.Builder
	b.Grow(n)

	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}

	return b.String(), nil
}
