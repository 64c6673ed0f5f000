package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/util"

	"go.uber.org/zap"
)

// CouponService validates coupon eligibility and manages usage
// reservations and the admin coupon catalog.
type CouponService struct {
	store  CouponStore
	logger *zap.Logger
	now    func() time.Time
}

// NewCouponService creates a new coupon service
func NewCouponService(store CouponStore) *CouponService {
	return &CouponService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Validate checks whether code can be newly applied to a cart whose
// items total itemsTotal. It returns the coupon on success. Inactive
// coupons are indistinguishable from missing ones.
func (cs *CouponService) Validate(ctx context.Context, code string, itemsTotal int64) (*models.Coupon, error) {
	return cs.validate(ctx, code, itemsTotal, true)
}

// ValidateAttached rechecks a coupon already attached to a cart. The
// usage-limit check is skipped because the cart holds a reservation
// counted in used_count.
func (cs *CouponService) ValidateAttached(ctx context.Context, code string, itemsTotal int64) (*models.Coupon, error) {
	return cs.validate(ctx, code, itemsTotal, false)
}

func (cs *CouponService) validate(ctx context.Context, code string, itemsTotal int64, checkUsage bool) (*models.Coupon, error) {
	coupon, err := cs.store.GetCouponByCode(ctx, code)
	if err != nil {
		util.CouponRejectionsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if !coupon.IsActive {
		util.CouponRejectionsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCouponNotFound, coupon.Code)
	}

	if coupon.ExpiryDate != nil && cs.now().After(*coupon.ExpiryDate) {
		util.CouponRejectionsTotal.WithLabelValues("expired").Inc()
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCouponExpired, coupon.Code)
	}

	if checkUsage && coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		util.CouponRejectionsTotal.WithLabelValues("exhausted").Inc()
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCouponExhausted, coupon.Code)
	}

	if coupon.MinOrderAmount != nil && itemsTotal < *coupon.MinOrderAmount {
		util.CouponRejectionsTotal.WithLabelValues("ineligible").Inc()
		return nil, fmt.Errorf("%w: order total %d below minimum %d",
			apperrors.ErrCouponIneligible, itemsTotal, *coupon.MinOrderAmount)
	}

	return coupon, nil
}

// Reserve claims one unit of usage for code. The store performs the
// claim atomically, so two concurrent reservations against a coupon
// with one use left cannot both succeed.
func (cs *CouponService) Reserve(ctx context.Context, code string) error {
	if err := cs.store.ReserveCoupon(ctx, code); err != nil {
		util.CouponRejectionsTotal.WithLabelValues("exhausted").Inc()
		return err
	}
	util.CouponReservationsTotal.Inc()
	return nil
}

// Release returns a previously reserved unit of usage.
func (cs *CouponService) Release(ctx context.Context, code string) error {
	if err := cs.store.ReleaseCoupon(ctx, code); err != nil {
		cs.logger.Error("Failed to release coupon reservation",
			zap.String("code", code),
			zap.Error(err))
		return err
	}
	return nil
}

// Create adds a new coupon. The code is stored uppercase.
func (cs *CouponService) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return fmt.Errorf("%w: coupon code is required", apperrors.ErrCouponNotFound)
	}

	if coupon.DiscountType != models.DiscountTypePercentage && coupon.DiscountType != models.DiscountTypeFixed {
		return &apperrors.Error{
			Code:    "INVALID_DISCOUNT_TYPE",
			Kind:    apperrors.KindValidation,
			Message: fmt.Sprintf("unknown discount type %q", coupon.DiscountType),
		}
	}

	if coupon.DiscountValue <= 0 {
		return &apperrors.Error{
			Code:    "INVALID_DISCOUNT_VALUE",
			Kind:    apperrors.KindValidation,
			Message: fmt.Sprintf("discount value must be positive, got %d", coupon.DiscountValue),
		}
	}
	if coupon.DiscountType == models.DiscountTypePercentage && coupon.DiscountValue > 100 {
		return &apperrors.Error{
			Code:    "INVALID_DISCOUNT_VALUE",
			Kind:    apperrors.KindValidation,
			Message: fmt.Sprintf("percentage discount cannot exceed 100, got %d", coupon.DiscountValue),
		}
	}

	if err := cs.store.CreateCoupon(ctx, coupon); err != nil {
		return err
	}

	cs.logger.Info("Coupon created",
		zap.String("code", coupon.Code),
		zap.String("type", coupon.DiscountType))
	return nil
}

// List returns all coupons, active or not.
func (cs *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	return cs.store.ListCoupons(ctx)
}

// Deactivate disables a coupon. Carts that already hold it keep the
// code but stop receiving the discount on the next pricing pass.
func (cs *CouponService) Deactivate(ctx context.Context, code string) error {
	return cs.store.SetCouponActive(ctx, code, false)
}

// SetActive toggles a coupon's active flag.
func (cs *CouponService) SetActive(ctx context.Context, code string, active bool) error {
	return cs.store.SetCouponActive(ctx, code, active)
}
