package models

import "time"

// Event types published for external collaborators (notification
// dispatch, analytics). The core never consumes its own events to
// drive state.
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypePaymentVerified    = "PAYMENT_VERIFIED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a checkout snapshots a cart.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	UserID        int64  `json:"user_id"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
}

// OrderStatusChangedEvent published after an accepted transition.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	UserID     int64  `json:"user_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// OrderCancelledEvent published when a cancellation is accepted.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	RequestedBy string `json:"requested_by"`
}

// PaymentVerifiedEvent published when a gateway callback verifies.
type PaymentVerifiedEvent struct {
	BaseEvent
	OrderID          int64  `json:"order_id"`
	UserID           int64  `json:"user_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Amount           int64  `json:"amount"`
}

// PaymentFailedEvent published when signature verification fails.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}
