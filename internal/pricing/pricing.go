// Package pricing computes cart totals. The engine is a pure function
// of (items, coupon, config); it never touches storage.
package pricing

import (
	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/util"

	"go.uber.org/zap"
)

// Config holds the pricing constants. Amounts in paise; TaxRatePercent
// applies to the post-discount items total.
type Config struct {
	TaxRatePercent        int64
	FreeShippingThreshold int64
	ShippingFee           int64
}

type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, logger: util.GetLogger()}
}

// Price computes totals for the given cart snapshot. coupon may be
// nil. Validation of coupon liveness (active, expiry, usage) belongs
// to the coupon service; Price only enforces the min-order floor and
// the discount caps.
func (e *Engine) Price(items []models.CartItem, coupon *models.Coupon) (models.Totals, error) {
	if len(items) == 0 {
		return models.Totals{}, apperrors.ErrEmptyCart
	}

	var itemsTotal int64
	for _, item := range items {
		itemsTotal += item.UnitPrice * int64(item.Quantity)
	}

	discount, err := e.Discount(itemsTotal, coupon)
	if err != nil {
		return models.Totals{}, err
	}

	taxAmount := (itemsTotal - discount) * e.cfg.TaxRatePercent / 100

	// Free shipping keys off the pre-discount items total.
	var shipping int64
	if itemsTotal < e.cfg.FreeShippingThreshold {
		shipping = e.cfg.ShippingFee
	}

	total := itemsTotal - discount + taxAmount + shipping
	if total < 0 {
		e.logger.Error("Computed negative total, clamping to zero",
			zap.Int64("items_total", itemsTotal),
			zap.Int64("discount", discount),
			zap.Int64("tax_amount", taxAmount),
			zap.Int64("shipping", shipping))
		total = 0
	}

	return models.Totals{
		ItemsTotal:      itemsTotal,
		Discount:        discount,
		TaxAmount:       taxAmount,
		ShippingCharges: shipping,
		TotalAmount:     total,
	}, nil
}

// Discount computes the coupon discount against itemsTotal. A nil
// coupon yields zero. The discount never exceeds maxDiscount (for
// percentage coupons) nor itemsTotal.
func (e *Engine) Discount(itemsTotal int64, coupon *models.Coupon) (int64, error) {
	if coupon == nil {
		return 0, nil
	}

	if coupon.MinOrderAmount != nil && itemsTotal < *coupon.MinOrderAmount {
		return 0, apperrors.ErrCouponIneligible
	}

	var discount int64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = itemsTotal * coupon.DiscountValue / 100
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
	}

	if discount > itemsTotal {
		discount = itemsTotal
	}
	return discount, nil
}
