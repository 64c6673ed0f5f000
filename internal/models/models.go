package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Product backs the catalog lookup. Price is in paise.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	InStock   bool      `db:"in_stock" json:"in_stock"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Cart is the per-user mutable cart. One per user, created lazily,
// cleared but never deleted.
type Cart struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	CouponCode *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem pins the unit price at add-time. The merge identity of a
// line is (product, size, color, design).
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	CartID    int64     `db:"cart_id" json:"cart_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice int64     `db:"unit_price" json:"unit_price"`
	Size      *string   `db:"size" json:"size,omitempty"`
	Color     *string   `db:"color" json:"color,omitempty"`
	DesignRef *string   `db:"design_ref" json:"design_ref,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Coupon discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon holds a discount definition and its usage counter. Codes are
// case-insensitive and stored uppercase. DiscountValue is a percent
// for percentage coupons and paise for fixed coupons.
type Coupon struct {
	ID             int64      `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	DiscountType   string     `db:"discount_type" json:"discount_type"`
	DiscountValue  int64      `db:"discount_value" json:"discount_value"`
	MinOrderAmount *int64     `db:"min_order_amount" json:"min_order_amount,omitempty"`
	MaxDiscount    *int64     `db:"max_discount" json:"max_discount,omitempty"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	UsageLimit     *int64     `db:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount      int64      `db:"used_count" json:"used_count"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Totals is the output of the pricing engine. All amounts in paise.
type Totals struct {
	ItemsTotal      int64 `json:"items_total"`
	Discount        int64 `json:"discount"`
	TaxAmount       int64 `json:"tax_amount"`
	ShippingCharges int64 `json:"shipping_charges"`
	TotalAmount     int64 `json:"total_amount"`
}

// PricedCart is a cart with its items and freshly computed totals.
// Every cart mutation returns one.
type PricedCart struct {
	Cart   Cart       `json:"cart"`
	Items  []CartItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// Payment methods
const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCOD      = "cod"
)

// IsOnlinePayment reports whether the method goes through the gateway.
func IsOnlinePayment(method string) bool {
	return method != PaymentMethodCOD
}

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// orderTransitions is the forward state machine. Cancellation is
// handled separately because it also checks the cancellation window.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transition is allowed.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ShippingAddress is snapshotted into the order as JSON.
type ShippingAddress struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Line1   string `json:"line1" binding:"required"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	Pincode string `json:"pincode" binding:"required"`
}

// Order is an immutable snapshot taken at checkout. Only the lifecycle
// manager and the payment reconciler mutate its status fields.
type Order struct {
	ID               int64          `db:"id" json:"id"`
	UserID           int64          `db:"user_id" json:"user_id"`
	CouponCode       *string        `db:"coupon_code" json:"coupon_code,omitempty"`
	ItemsTotal       int64          `db:"items_total" json:"items_total"`
	Discount         int64          `db:"discount" json:"discount"`
	TaxAmount        int64          `db:"tax_amount" json:"tax_amount"`
	ShippingCharges  int64          `db:"shipping_charges" json:"shipping_charges"`
	TotalAmount      int64          `db:"total_amount" json:"total_amount"`
	Currency         string         `db:"currency" json:"currency"`
	PaymentMethod    string         `db:"payment_method" json:"payment_method"`
	PaymentStatus    string         `db:"payment_status" json:"payment_status"`
	OrderStatus      string         `db:"order_status" json:"order_status"`
	ShippingAddress  types.JSONText `db:"shipping_address" json:"shipping_address"`
	TrackingProvider *string        `db:"tracking_provider" json:"tracking_provider,omitempty"`
	TrackingID       *string        `db:"tracking_id" json:"tracking_id,omitempty"`
	GatewayOrderID   *string        `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Totals rebuilds the pricing breakdown stored on the order.
func (o *Order) Totals() Totals {
	return Totals{
		ItemsTotal:      o.ItemsTotal,
		Discount:        o.Discount,
		TaxAmount:       o.TaxAmount,
		ShippingCharges: o.ShippingCharges,
		TotalAmount:     o.TotalAmount,
	}
}

// TrackingInfo identifies a shipment at the courier.
type TrackingInfo struct {
	Provider   string `json:"provider"`
	TrackingID string `json:"tracking_id"`
}

// Empty reports whether either tracking field is missing.
func (t TrackingInfo) Empty() bool {
	return t.Provider == "" || t.TrackingID == ""
}

// OrderItem is a snapshot line inside an order.
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPrice   int64   `db:"unit_price" json:"unit_price"`
	Size        *string `db:"size" json:"size,omitempty"`
	Color       *string `db:"color" json:"color,omitempty"`
	DesignRef   *string `db:"design_ref" json:"design_ref,omitempty"`
}

// StatusHistoryEntry is one append-only row of an order's history.
type StatusHistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PaymentAttempt records a gateway callback and its verification
// outcome. At most one verified attempt per order.
type PaymentAttempt struct {
	ID               int64     `db:"id" json:"id"`
	OrderID          int64     `db:"order_id" json:"order_id"`
	GatewayOrderID   string    `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string    `db:"gateway_payment_id" json:"gateway_payment_id"`
	Signature        string    `db:"signature" json:"-"`
	Verified         bool      `db:"verified" json:"verified"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
