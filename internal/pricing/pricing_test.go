package pricing

import (
	"testing"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		TaxRatePercent:        18,
		FreeShippingThreshold: 100000, // ₹1000
		ShippingFee:           5000,   // ₹50
	}
}

func items(prices ...int64) []models.CartItem {
	out := make([]models.CartItem, 0, len(prices))
	for _, p := range prices {
		out = append(out, models.CartItem{UnitPrice: p, Quantity: 1})
	}
	return out
}

func int64p(v int64) *int64 { return &v }

func TestPrice_EmptyCart(t *testing.T) {
	engine := NewEngine(testConfig())

	_, err := engine.Price(nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
}

func TestPrice_EndToEndExample(t *testing.T) {
	// Two items ₹500 and ₹300, SAVE10: 10% capped at ₹50, min order ₹200.
	engine := NewEngine(testConfig())

	coupon := &models.Coupon{
		Code:           "SAVE10",
		DiscountType:   models.DiscountTypePercentage,
		DiscountValue:  10,
		MaxDiscount:    int64p(5000),
		MinOrderAmount: int64p(20000),
		IsActive:       true,
	}

	totals, err := engine.Price(items(50000, 30000), coupon)
	require.NoError(t, err)

	assert.Equal(t, int64(80000), totals.ItemsTotal)
	assert.Equal(t, int64(5000), totals.Discount)   // 10% of 80000 is 8000, capped at 5000
	assert.Equal(t, int64(13500), totals.TaxAmount) // 18% of 75000
	assert.Equal(t, int64(5000), totals.ShippingCharges)
	assert.Equal(t, int64(80000-5000+13500+5000), totals.TotalAmount)
}

func TestPrice_TotalsIdentity(t *testing.T) {
	engine := NewEngine(testConfig())

	cases := []struct {
		name   string
		items  []models.CartItem
		coupon *models.Coupon
	}{
		{"no coupon", items(19900, 4500, 75000), nil},
		{"fixed", items(50000), &models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 10000}},
		{"percentage", items(120000), &models.Coupon{DiscountType: models.DiscountTypePercentage, DiscountValue: 25}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := engine.Price(tc.items, tc.coupon)
			require.NoError(t, err)
			assert.Equal(t, totals.ItemsTotal-totals.Discount+totals.TaxAmount+totals.ShippingCharges, totals.TotalAmount)
			assert.GreaterOrEqual(t, totals.TotalAmount, int64(0))
		})
	}
}

func TestPrice_FreeShippingUsesPreDiscountTotal(t *testing.T) {
	engine := NewEngine(testConfig())

	// itemsTotal exactly at the threshold: free shipping even though a
	// fixed coupon drags the discounted total far below it.
	coupon := &models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 90000}
	totals, err := engine.Price(items(100000), coupon)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.ShippingCharges)

	// One paisa below the threshold: flat fee applies regardless of
	// any discount.
	totals, err = engine.Price(items(99999), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), totals.ShippingCharges)
}

func TestPrice_FixedDiscountClampedToItemsTotal(t *testing.T) {
	engine := NewEngine(testConfig())

	coupon := &models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 99999}
	totals, err := engine.Price(items(30000), coupon)
	require.NoError(t, err)

	assert.Equal(t, int64(30000), totals.Discount)
	assert.Equal(t, int64(0), totals.TaxAmount)
	assert.Equal(t, totals.ShippingCharges, totals.TotalAmount)
}

func TestPrice_MinOrderFloorRejected(t *testing.T) {
	engine := NewEngine(testConfig())

	coupon := &models.Coupon{
		DiscountType:   models.DiscountTypePercentage,
		DiscountValue:  10,
		MinOrderAmount: int64p(50000),
	}

	_, err := engine.Price(items(30000), coupon)
	assert.ErrorIs(t, err, apperrors.ErrCouponIneligible)
}

func TestDiscount_PercentageWithoutCap(t *testing.T) {
	engine := NewEngine(testConfig())

	coupon := &models.Coupon{DiscountType: models.DiscountTypePercentage, DiscountValue: 10}
	discount, err := engine.Discount(80000, coupon)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), discount)
}

func TestDiscount_NilCoupon(t *testing.T) {
	engine := NewEngine(testConfig())

	discount, err := engine.Discount(80000, nil)
	require.NoError(t, err)
	assert.Zero(t, discount)
}

func TestPrice_QuantityMultiplies(t *testing.T) {
	engine := NewEngine(testConfig())

	cart := []models.CartItem{
		{UnitPrice: 25000, Quantity: 3},
		{UnitPrice: 10000, Quantity: 2},
	}

	totals, err := engine.Price(cart, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(95000), totals.ItemsTotal)
}
