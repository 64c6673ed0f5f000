package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func timep(t time.Time) *time.Time { return &t }

func TestCouponValidate(t *testing.T) {
	store := newFakeCouponStore()
	store.put(models.Coupon{
		Code:           "SAVE10",
		DiscountType:   models.DiscountTypePercentage,
		DiscountValue:  10,
		MinOrderAmount: int64p(50000),
		IsActive:       true,
	})
	store.put(models.Coupon{
		Code:          "GONE",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		IsActive:      false,
	})
	store.put(models.Coupon{
		Code:          "OLD",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		ExpiryDate:    timep(time.Now().Add(-time.Hour)),
		IsActive:      true,
	})
	store.put(models.Coupon{
		Code:          "MAXED",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		UsageLimit:    int64p(3),
		UsedCount:     3,
		IsActive:      true,
	})

	cs := NewCouponService(store)
	ctx := context.Background()

	coupon, err := cs.Validate(ctx, "save10", 80000)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", coupon.Code)

	_, err = cs.Validate(ctx, "SAVE10", 40000)
	assert.ErrorIs(t, err, apperrors.ErrCouponIneligible)

	_, err = cs.Validate(ctx, "NOPE", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponNotFound)

	// An inactive coupon looks like a missing one.
	_, err = cs.Validate(ctx, "GONE", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponNotFound)

	_, err = cs.Validate(ctx, "OLD", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponExpired)

	_, err = cs.Validate(ctx, "MAXED", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponExhausted)
}

func TestCouponValidateAttachedSkipsUsageCheck(t *testing.T) {
	store := newFakeCouponStore()
	store.put(models.Coupon{
		Code:          "LAST1",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		UsageLimit:    int64p(1),
		UsedCount:     1,
		IsActive:      true,
	})

	cs := NewCouponService(store)
	ctx := context.Background()

	_, err := cs.Validate(ctx, "LAST1", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponExhausted)

	coupon, err := cs.ValidateAttached(ctx, "LAST1", 80000)
	require.NoError(t, err)
	assert.Equal(t, "LAST1", coupon.Code)
}

func TestCouponReserveConcurrent(t *testing.T) {
	store := newFakeCouponStore()
	store.put(models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		UsageLimit:    int64p(1),
		IsActive:      true,
	})

	cs := NewCouponService(store)
	ctx := context.Background()

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cs.Reserve(ctx, "ONCE")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrCouponExhausted)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(1), store.usedCount("ONCE"))
}

func TestCouponReleaseReturnsUsage(t *testing.T) {
	store := newFakeCouponStore()
	store.put(models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		UsageLimit:    int64p(1),
		IsActive:      true,
	})

	cs := NewCouponService(store)
	ctx := context.Background()

	require.NoError(t, cs.Reserve(ctx, "ONCE"))
	assert.ErrorIs(t, cs.Reserve(ctx, "ONCE"), apperrors.ErrCouponExhausted)

	require.NoError(t, cs.Release(ctx, "ONCE"))
	assert.NoError(t, cs.Reserve(ctx, "ONCE"))
}

func TestCouponCreate(t *testing.T) {
	store := newFakeCouponStore()
	cs := NewCouponService(store)
	ctx := context.Background()

	coupon := &models.Coupon{
		Code:          " save10 ",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		IsActive:      true,
	}
	require.NoError(t, cs.Create(ctx, coupon))
	assert.Equal(t, "SAVE10", coupon.Code)

	dup := &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 20,
	}
	assert.ErrorIs(t, cs.Create(ctx, dup), apperrors.ErrCouponExists)

	bad := &models.Coupon{Code: "WEIRD", DiscountType: "bogof", DiscountValue: 1}
	err := cs.Create(ctx, bad)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCouponCreateRejectsBadDiscountValues(t *testing.T) {
	cs := NewCouponService(newFakeCouponStore())
	ctx := context.Background()

	for _, coupon := range []*models.Coupon{
		{Code: "ZERO", DiscountType: models.DiscountTypePercentage, DiscountValue: 0},
		{Code: "NEG", DiscountType: models.DiscountTypeFixed, DiscountValue: -5000},
		{Code: "OVER", DiscountType: models.DiscountTypePercentage, DiscountValue: 150},
	} {
		err := cs.Create(ctx, coupon)
		require.Error(t, err, coupon.Code)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), coupon.Code)
		assert.Equal(t, "INVALID_DISCOUNT_VALUE", apperrors.CodeOf(err), coupon.Code)
	}

	// A fixed discount above 100 is fine; the cap only binds percentages.
	big := &models.Coupon{Code: "FLAT1500", DiscountType: models.DiscountTypeFixed, DiscountValue: 150000, IsActive: true}
	require.NoError(t, cs.Create(ctx, big))
}

func TestCouponDeactivate(t *testing.T) {
	store := newFakeCouponStore()
	store.put(models.Coupon{
		Code:          "SOON",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		IsActive:      true,
	})

	cs := NewCouponService(store)
	ctx := context.Background()

	require.NoError(t, cs.Deactivate(ctx, "SOON"))
	_, err := cs.Validate(ctx, "SOON", 80000)
	assert.ErrorIs(t, err, apperrors.ErrCouponNotFound)
}
