package service

import (
	"context"

	"teenprint-core/internal/gateway"
	"teenprint-core/internal/models"
)

// The services consume narrow store interfaces so tests can substitute
// fakes. *store.Store satisfies all of them.

// CartStore persists carts and their items.
type CartStore interface {
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	FindCartItemByTuple(ctx context.Context, cartID, productID int64, size, color, designRef *string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	AddCartItemQuantity(ctx context.Context, itemID int64, qty int) error
	SetCartItemQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	DeleteCartItem(ctx context.Context, cartID, itemID int64) error
	SetCartCoupon(ctx context.Context, cartID int64, code *string) error
	ClearCart(ctx context.Context, cartID int64) error
}

// CouponStore persists coupon definitions and usage counters. Reserve
// must be atomic: it claims one unit of usage iff usage remains.
type CouponStore interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	SetCouponActive(ctx context.Context, code string, active bool) error
	ReserveCoupon(ctx context.Context, code string) error
	ReleaseCoupon(ctx context.Context, code string) error
}

// OrderStore persists order snapshots, history and payment attempts.
type OrderStore interface {
	CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEntry, error)
	UpdateOrderStatusTx(ctx context.Context, orderID int64, status string, tracking *models.TrackingInfo) error
	SetGatewayOrderID(ctx context.Context, orderID int64, gatewayOrderID string) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error
	CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	GetVerifiedAttempt(ctx context.Context, orderID int64) (*models.PaymentAttempt, error)
	MarkOrderPaidTx(ctx context.Context, orderID int64, attempt *models.PaymentAttempt) error
}

// Catalog resolves a product reference to its current price and
// availability.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
}

// CartCache holds the priced-cart view between mutations.
type CartCache interface {
	GetPricedCart(ctx context.Context, userID int64) (*models.PricedCart, error)
	SetPricedCart(ctx context.Context, userID int64, cart *models.PricedCart) error
	InvalidateCart(ctx context.Context, userID int64) error
}

// PaymentGateway is the gateway client surface the reconciler needs.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.Order, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// EventSink publishes domain events for external collaborators.
// *broker.EventPublisher satisfies it.
type EventSink interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}
