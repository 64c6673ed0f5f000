package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
)

// In-memory fakes for the store interfaces. The coupon fake guards its
// usage counter with a mutex so reservation races behave like the SQL
// conditional update.

type fakeCouponStore struct {
	mu      sync.Mutex
	nextID  int64
	coupons map[string]*models.Coupon
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{coupons: make(map[string]*models.Coupon)}
}

func (f *fakeCouponStore) put(c models.Coupon) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.Code = strings.ToUpper(c.Code)
	f.coupons[c.Code] = &c
}

func (f *fakeCouponStore) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCouponNotFound, code)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponStore) CreateCoupon(_ context.Context, coupon *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.coupons[coupon.Code]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrCouponExists, coupon.Code)
	}
	f.nextID++
	coupon.ID = f.nextID
	cp := *coupon
	f.coupons[coupon.Code] = &cp
	return nil
}

func (f *fakeCouponStore) ListCoupons(_ context.Context) ([]models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Coupon, 0, len(f.coupons))
	for _, c := range f.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCouponStore) SetCouponActive(_ context.Context, code string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrCouponNotFound, code)
	}
	c.IsActive = active
	return nil
}

func (f *fakeCouponStore) ReserveCoupon(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok || !c.IsActive {
		return fmt.Errorf("%w: %s", apperrors.ErrCouponNotFound, code)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return fmt.Errorf("%w: %s", apperrors.ErrCouponExhausted, code)
	}
	c.UsedCount++
	return nil
}

func (f *fakeCouponStore) ReleaseCoupon(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrCouponNotFound, code)
	}
	if c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

func (f *fakeCouponStore) usedCount(code string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coupons[strings.ToUpper(code)].UsedCount
}

type fakeCartStore struct {
	mu         sync.Mutex
	nextCartID int64
	nextItemID int64
	carts      map[int64]*models.Cart
	items      map[int64][]*models.CartItem
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts: make(map[int64]*models.Cart),
		items: make(map[int64][]*models.CartItem),
	}
}

func (f *fakeCartStore) GetOrCreateCart(_ context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[userID]; ok {
		cp := *c
		return &cp, nil
	}
	f.nextCartID++
	c := &models.Cart{ID: f.nextCartID, UserID: userID, CreatedAt: time.Now()}
	f.carts[userID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeCartStore) GetCartByUserID(_ context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", apperrors.ErrCartNotFound, userID)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCartStore) GetCartItems(_ context.Context, cartID int64) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.CartItem, 0, len(f.items[cartID]))
	for _, it := range f.items[cartID] {
		out = append(out, *it)
	}
	return out, nil
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakeCartStore) FindCartItemByTuple(_ context.Context, cartID, productID int64, size, color, designRef *string) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items[cartID] {
		if it.ProductID == productID && strEq(it.Size, size) && strEq(it.Color, color) && strEq(it.DesignRef, designRef) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCartStore) InsertCartItem(_ context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItemID++
	item.ID = f.nextItemID
	item.CreatedAt = time.Now()
	cp := *item
	f.items[item.CartID] = append(f.items[item.CartID], &cp)
	return nil
}

func (f *fakeCartStore) AddCartItemQuantity(_ context.Context, itemID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, items := range f.items {
		for _, it := range items {
			if it.ID == itemID {
				it.Quantity += qty
				return nil
			}
		}
	}
	return fmt.Errorf("%w: item %d", apperrors.ErrCartItemNotFound, itemID)
}

func (f *fakeCartStore) SetCartItemQuantity(_ context.Context, cartID, itemID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items[cartID] {
		if it.ID == itemID {
			it.Quantity = qty
			return nil
		}
	}
	return fmt.Errorf("%w: item %d", apperrors.ErrCartItemNotFound, itemID)
}

func (f *fakeCartStore) DeleteCartItem(_ context.Context, cartID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[cartID]
	for i, it := range items {
		if it.ID == itemID {
			f.items[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: item %d", apperrors.ErrCartItemNotFound, itemID)
}

func (f *fakeCartStore) SetCartCoupon(_ context.Context, cartID int64, code *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.ID == cartID {
			c.CouponCode = code
			return nil
		}
	}
	return fmt.Errorf("%w: cart %d", apperrors.ErrCartNotFound, cartID)
}

func (f *fakeCartStore) ClearCart(_ context.Context, cartID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[cartID] = nil
	for _, c := range f.carts {
		if c.ID == cartID {
			c.CouponCode = nil
		}
	}
	return nil
}

type fakeCatalog struct {
	products map[int64]*models.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID int64) (*models.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrProductNotFound, productID)
	}
	cp := *p
	return &cp, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) record(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, t)
}

func (f *fakeEvents) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeEvents) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakeEvents) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakeEvents) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakeEvents) PublishPaymentVerified(_ context.Context, e *models.PaymentVerifiedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakeEvents) PublishPaymentFailed(_ context.Context, e *models.PaymentFailedEvent) error {
	f.record(e.EventType)
	return nil
}

type fakeOrderStore struct {
	mu         sync.Mutex
	nextID     int64
	nextItemID int64
	orders     map[int64]*models.Order
	items      map[int64][]models.OrderItem
	history    map[int64][]models.StatusHistoryEntry
	attempts   map[int64][]models.PaymentAttempt
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]models.OrderItem),
		history:  make(map[int64][]models.StatusHistoryEntry),
		attempts: make(map[int64][]models.PaymentAttempt),
	}
}

func (f *fakeOrderStore) CreateOrderTx(_ context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	for i := range items {
		f.nextItemID++
		items[i].ID = f.nextItemID
		items[i].OrderID = order.ID
	}
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
	f.history[order.ID] = append(f.history[order.ID], models.StatusHistoryEntry{
		OrderID:   order.ID,
		Status:    order.OrderStatus,
		CreatedAt: order.CreatedAt,
	})
	return nil
}

func (f *fakeOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetOrderForUser(_ context.Context, id, userID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeOrderStore) GetStatusHistory(_ context.Context, orderID int64) ([]models.StatusHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StatusHistoryEntry(nil), f.history[orderID]...), nil
}

func (f *fakeOrderStore) UpdateOrderStatusTx(_ context.Context, orderID int64, status string, tracking *models.TrackingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, orderID)
	}
	o.OrderStatus = status
	if tracking != nil {
		o.TrackingProvider = &tracking.Provider
		o.TrackingID = &tracking.TrackingID
	}
	f.history[orderID] = append(f.history[orderID], models.StatusHistoryEntry{
		OrderID:   orderID,
		Status:    status,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeOrderStore) SetGatewayOrderID(_ context.Context, orderID int64, gatewayOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, orderID)
	}
	o.GatewayOrderID = &gatewayOrderID
	return nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(_ context.Context, orderID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, orderID)
	}
	o.PaymentStatus = status
	return nil
}

func (f *fakeOrderStore) CreatePaymentAttempt(_ context.Context, attempt *models.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[attempt.OrderID] = append(f.attempts[attempt.OrderID], *attempt)
	return nil
}

func (f *fakeOrderStore) GetVerifiedAttempt(_ context.Context, orderID int64) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts[orderID] {
		if a.Verified {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) MarkOrderPaidTx(_ context.Context, orderID int64, attempt *models.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", apperrors.ErrOrderNotFound, orderID)
	}
	f.attempts[orderID] = append(f.attempts[orderID], *attempt)
	o.PaymentStatus = models.PaymentStatusPaid
	o.OrderStatus = models.OrderStatusConfirmed
	f.history[orderID] = append(f.history[orderID], models.StatusHistoryEntry{
		OrderID:   orderID,
		Status:    models.OrderStatusConfirmed,
		CreatedAt: time.Now(),
	})
	return nil
}

type fakeCheckoutCart struct {
	mu       sync.Mutex
	priced   *models.PricedCart
	err      error
	cleared  []int64
	detached map[int64]string
}

func (f *fakeCheckoutCart) PricedSnapshot(_ context.Context, userID int64) (*models.PricedCart, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.priced, nil
}

func (f *fakeCheckoutCart) ClearAfterOrder(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, userID)
	return nil
}

func (f *fakeCheckoutCart) DetachCoupon(_ context.Context, userID int64, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached == nil {
		f.detached = make(map[int64]string)
	}
	f.detached[userID] = code
	return nil
}

func (f *fakeCheckoutCart) detachedFor(userID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached[userID]
}

func (f *fakeCheckoutCart) clearedFor(userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.cleared {
		if id == userID {
			return true
		}
	}
	return false
}
