package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/pricing"
	"teenprint-core/internal/util"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartService handles cart mutations and keeps the priced-cart view
// consistent. Mutations for one user are serialized behind a per-user
// mutex; reads coalesce through singleflight.
type CartService struct {
	store   CartStore
	catalog Catalog
	coupons *CouponService
	engine  *pricing.Engine
	cache   CartCache
	logger  *zap.Logger

	userLocks sync.Map
	loads     singleflight.Group
}

// NewCartService creates a new cart service
func NewCartService(
	store CartStore,
	catalog Catalog,
	coupons *CouponService,
	engine *pricing.Engine,
	cache CartCache,
) *CartService {
	return &CartService{
		store:   store,
		catalog: catalog,
		coupons: coupons,
		engine:  engine,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// AddItemRequest represents a request to add an item to the cart
type AddItemRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
	DesignRef *string `json:"design_ref,omitempty"`
}

// UpdateQuantityRequest represents a quantity change for a cart line
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// ApplyCouponRequest carries the coupon code to apply
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *CartService) lockUser(userID int64) func() {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// GetCart returns the user's priced cart, creating an empty cart if
// none exists. Concurrent reads for the same user share one load.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetPricedCart(ctx, userID)
		if err == nil {
			return cached, nil
		}
	}

	v, err, _ := s.loads.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		cart, err := s.store.GetOrCreateCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.priceAndCache(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PricedCart), nil
}

// AddItem adds a product to the cart, merging into an existing line
// when product, size, color and design all match. The unit price is
// pinned from the catalog at add-time.
func (s *CartService) AddItem(ctx context.Context, userID int64, req *AddItemRequest) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: got %d", apperrors.ErrInvalidQuantity, req.Quantity)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, fmt.Errorf("%w: product %d", apperrors.ErrProductUnavailable, product.ID)
	}

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindCartItemByTuple(ctx, cart.ID, req.ProductID, req.Size, req.Color, req.DesignRef)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := s.store.AddCartItemQuantity(ctx, existing.ID, req.Quantity); err != nil {
			return nil, err
		}
	} else {
		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: product.Price,
			Size:      req.Size,
			Color:     req.Color,
			DesignRef: req.DesignRef,
		}
		if err := s.store.InsertCartItem(ctx, item); err != nil {
			return nil, err
		}
	}

	util.CartMutationsTotal.WithLabelValues("add_item").Inc()
	return s.priceAndCache(ctx, cart)
}

// UpdateQuantity sets the quantity of a cart line. Quantities below
// one are rejected; removal is a separate operation.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity < 1 {
		return nil, fmt.Errorf("%w: got %d", apperrors.ErrInvalidQuantity, quantity)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetCartItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("update_quantity").Inc()
	return s.priceAndCache(ctx, cart)
}

// RemoveItem deletes a cart line.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteCartItem(ctx, cart.ID, itemID); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("remove_item").Inc()
	return s.priceAndCache(ctx, cart)
}

// ApplyCoupon validates and reserves the coupon, then attaches it to
// the cart. A previously attached coupon is released only after the
// new reservation has succeeded; re-applying the attached code never
// claims a second usage unit.
func (s *CartService) ApplyCoupon(ctx context.Context, userID int64, code string) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ApplyCoupon")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))

	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	// Re-applying the attached code is a retry; the reservation from
	// the first apply still stands.
	if cart.CouponCode != nil && *cart.CouponCode == code {
		return s.priceAndCache(ctx, cart)
	}

	if _, err := s.coupons.Validate(ctx, code, itemsTotal(items)); err != nil {
		return nil, err
	}

	if err := s.coupons.Reserve(ctx, code); err != nil {
		return nil, err
	}

	previous := cart.CouponCode

	if err := s.store.SetCartCoupon(ctx, cart.ID, &code); err != nil {
		if relErr := s.coupons.Release(ctx, code); relErr != nil {
			s.logger.Error("Failed to release coupon after attach failure",
				zap.String("code", code), zap.Error(relErr))
		}
		return nil, err
	}
	cart.CouponCode = &code

	if previous != nil && *previous != code {
		if err := s.coupons.Release(ctx, *previous); err != nil {
			s.logger.Error("Failed to release replaced coupon",
				zap.String("code", *previous), zap.Error(err))
		}
	}

	util.CartMutationsTotal.WithLabelValues("apply_coupon").Inc()
	return s.priceAndCache(ctx, cart)
}

// RemoveCoupon detaches the cart's coupon and releases its
// reservation. A cart without a coupon is left unchanged.
func (s *CartService) RemoveCoupon(ctx context.Context, userID int64) (*models.PricedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveCoupon")
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart.CouponCode != nil {
		code := *cart.CouponCode
		if err := s.store.SetCartCoupon(ctx, cart.ID, nil); err != nil {
			return nil, err
		}
		cart.CouponCode = nil
		if err := s.coupons.Release(ctx, code); err != nil {
			s.logger.Error("Failed to release removed coupon",
				zap.String("code", code), zap.Error(err))
		}
	}

	util.CartMutationsTotal.WithLabelValues("remove_coupon").Inc()
	return s.priceAndCache(ctx, cart)
}

// DetachCoupon drops code from the user's cart without releasing the
// reservation. Order cancellation uses it so a returned coupon cannot
// keep discounting the still-open cart.
func (s *CartService) DetachCoupon(ctx context.Context, userID int64, code string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCartNotFound) {
			return nil
		}
		return err
	}
	if cart.CouponCode == nil || *cart.CouponCode != code {
		return nil
	}

	if err := s.store.SetCartCoupon(ctx, cart.ID, nil); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateCart(ctx, userID); err != nil {
			s.logger.Warn("Failed to invalidate cart cache",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

// Clear empties the cart and releases any held coupon reservation.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	return s.clearLocked(ctx, userID, true)
}

// ClearAfterOrder empties the cart after a successful checkout. The
// coupon reservation is consumed by the order, not released.
func (s *CartService) ClearAfterOrder(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.ClearAfterOrder")
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	return s.clearLocked(ctx, userID, false)
}

func (s *CartService) clearLocked(ctx context.Context, userID int64, releaseCoupon bool) error {
	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCartNotFound) {
			return nil
		}
		return err
	}

	code := cart.CouponCode

	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		return err
	}

	if releaseCoupon && code != nil {
		if err := s.coupons.Release(ctx, *code); err != nil {
			s.logger.Error("Failed to release coupon on cart clear",
				zap.String("code", *code), zap.Error(err))
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateCart(ctx, userID); err != nil {
			s.logger.Warn("Failed to invalidate cart cache",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// PricedSnapshot loads and prices the cart under the user lock for
// checkout. It does not create a cart.
func (s *CartService) PricedSnapshot(ctx context.Context, userID int64) (*models.PricedCart, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart)
}

// priceAndCache prices the cart and refreshes the cached view.
func (s *CartService) priceAndCache(ctx context.Context, cart *models.Cart) (*models.PricedCart, error) {
	priced, err := s.price(ctx, cart)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPricedCart(ctx, cart.UserID, priced); err != nil {
			s.logger.Warn("Failed to cache priced cart",
				zap.Int64("user_id", cart.UserID), zap.Error(err))
		}
	}
	return priced, nil
}

// price computes the cart's totals. A coupon that has become
// ineligible since it was applied stays on the cart but contributes no
// discount.
func (s *CartService) price(ctx context.Context, cart *models.Cart) (*models.PricedCart, error) {
	timer := prometheus.NewTimer(util.CartPricingLatency)
	defer timer.ObserveDuration()

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return &models.PricedCart{Cart: *cart, Items: []models.CartItem{}}, nil
	}

	var coupon *models.Coupon
	if cart.CouponCode != nil {
		coupon, err = s.coupons.ValidateAttached(ctx, *cart.CouponCode, itemsTotal(items))
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInternal {
				return nil, err
			}
			s.logger.Warn("Attached coupon no longer eligible, pricing without it",
				zap.String("code", *cart.CouponCode),
				zap.Int64("user_id", cart.UserID),
				zap.Error(err))
			coupon = nil
		}
	}

	totals, err := s.engine.Price(items, coupon)
	if err != nil {
		return nil, err
	}

	return &models.PricedCart{Cart: *cart, Items: items, Totals: totals}, nil
}

func itemsTotal(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
