package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"

	"github.com/lib/pq"
)

// GetCouponByCode retrieves a coupon. Codes are case-insensitive.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE code = $1", strings.ToUpper(code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %s: %w", code, apperrors.ErrCouponNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CreateCoupon inserts a coupon definition. The code is stored
// uppercase.
func (s *Store) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	query := `
		INSERT INTO coupons (code, discount_type, discount_value, min_order_amount,
			max_discount, expiry_date, usage_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, used_count, created_at, updated_at`

	err := s.db.GetContext(ctx, coupon, query,
		coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.MinOrderAmount,
		coupon.MaxDiscount, coupon.ExpiryDate, coupon.UsageLimit, coupon.IsActive)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("coupon %s: %w", coupon.Code, apperrors.ErrCouponExists)
	}
	return err
}

// ListCoupons retrieves all coupon definitions, newest first
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.db.SelectContext(ctx, &coupons, "SELECT * FROM coupons ORDER BY created_at DESC")
	return coupons, err
}

// SetCouponActive flips a coupon's active flag
func (s *Store) SetCouponActive(ctx context.Context, code string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET is_active = $1, updated_at = NOW() WHERE code = $2",
		active, strings.ToUpper(code))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("coupon %s: %w", code, apperrors.ErrCouponNotFound)
	}
	return nil
}

// ReserveCoupon claims one unit of usage with a single conditional
// UPDATE, so two checkouts racing for the last unit can never both
// succeed.
func (s *Store) ReserveCoupon(ctx context.Context, code string) error {
	code = strings.ToUpper(code)
	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1 AND is_active
		  AND (usage_limit IS NULL OR used_count < usage_limit)`,
		code)
	if err != nil {
		return fmt.Errorf("failed to reserve coupon: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// The conditional update matched nothing: distinguish a missing or
	// inactive coupon from an exhausted one.
	coupon, err := s.GetCouponByCode(ctx, code)
	if err != nil {
		return err
	}
	if !coupon.IsActive {
		return fmt.Errorf("coupon %s: %w", code, apperrors.ErrCouponNotFound)
	}
	return fmt.Errorf("coupon %s: %w", code, apperrors.ErrCouponExhausted)
}

// ReleaseCoupon returns one unit of usage. The counter never drops
// below zero.
func (s *Store) ReleaseCoupon(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count - 1, updated_at = NOW()
		WHERE code = $1 AND used_count > 0`,
		strings.ToUpper(code))
	if err != nil {
		return fmt.Errorf("failed to release coupon: %w", err)
	}
	return nil
}
