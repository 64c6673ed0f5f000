package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartCheckout is the slice of the cart service that checkout and
// cancellation need.
type CartCheckout interface {
	PricedSnapshot(ctx context.Context, userID int64) (*models.PricedCart, error)
	ClearAfterOrder(ctx context.Context, userID int64) error
	DetachCoupon(ctx context.Context, userID int64, code string) error
}

// OrderService handles checkout and the order lifecycle.
type OrderService struct {
	store          OrderStore
	cart           CartCheckout
	catalog        Catalog
	coupons        *CouponService
	eventPublisher EventSink
	currency       string
	cancelWindow   time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	cart CartCheckout,
	catalog Catalog,
	coupons *CouponService,
	eventPublisher EventSink,
	currency string,
	cancelWindow time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		cart:           cart,
		catalog:        catalog,
		coupons:        coupons,
		eventPublisher: eventPublisher,
		currency:       currency,
		cancelWindow:   cancelWindow,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
}

// OrderDetail is an order with its line items and status history.
type OrderDetail struct {
	Order   models.Order                `json:"order"`
	Items   []models.OrderItem          `json:"items"`
	History []models.StatusHistoryEntry `json:"history"`
}

// CreateOrder snapshots the user's priced cart into an immutable
// order. Cash-on-delivery orders clear the cart immediately; online
// orders keep it until payment verifies.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req.PaymentMethod != models.PaymentMethodRazorpay && req.PaymentMethod != models.PaymentMethodCOD {
		return nil, &apperrors.Error{
			Code:    "INVALID_PAYMENT_METHOD",
			Kind:    apperrors.KindValidation,
			Message: fmt.Sprintf("unknown payment method %q", req.PaymentMethod),
		}
	}

	priced, err := s.cart.PricedSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(priced.Items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	address, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}

	order := &models.Order{
		UserID:          userID,
		CouponCode:      priced.Cart.CouponCode,
		ItemsTotal:      priced.Totals.ItemsTotal,
		Discount:        priced.Totals.Discount,
		TaxAmount:       priced.Totals.TaxAmount,
		ShippingCharges: priced.Totals.ShippingCharges,
		TotalAmount:     priced.Totals.TotalAmount,
		Currency:        s.currency,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
		ShippingAddress: address,
	}

	items := make([]models.OrderItem, 0, len(priced.Items))
	for _, line := range priced.Items {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Size:        line.Size,
			Color:       line.Color,
			DesignRef:   line.DesignRef,
		})
	}

	if err := s.store.CreateOrderTx(ctx, order, items); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", req.PaymentMethod),
		zap.Int64("total_amount", order.TotalAmount))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: s.now(),
		},
		OrderID:       order.ID,
		UserID:        userID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	if !models.IsOnlinePayment(req.PaymentMethod) {
		if err := s.cart.ClearAfterOrder(ctx, userID); err != nil {
			s.logger.Error("Failed to clear cart after COD checkout",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return order, nil
}

// AdvanceStatus moves an order forward through its lifecycle.
// Cancellation goes through Cancel, never through here.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID int64, to string, tracking *models.TrackingInfo) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AdvanceStatus")
	defer span.End()

	if !models.IsValidOrderStatus(to) {
		return nil, &apperrors.Error{
			Code:    "INVALID_STATUS",
			Kind:    apperrors.KindValidation,
			Message: fmt.Sprintf("unknown order status %q", to),
		}
	}
	if to == models.OrderStatusCancelled {
		util.OrderTransitionsRejected.WithLabelValues("cancel_via_status").Inc()
		return nil, fmt.Errorf("%w: use the cancellation endpoint", apperrors.ErrInvalidTransition)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if models.IsTerminalStatus(order.OrderStatus) {
		util.OrderTransitionsRejected.WithLabelValues("terminal").Inc()
		return nil, fmt.Errorf("%w: order %d is %s", apperrors.ErrOrderTerminal, orderID, order.OrderStatus)
	}
	if !models.CanTransition(order.OrderStatus, to) {
		util.OrderTransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, order.OrderStatus, to)
	}
	if to == models.OrderStatusShipped && (tracking == nil || tracking.Empty()) {
		util.OrderTransitionsRejected.WithLabelValues("missing_tracking").Inc()
		return nil, apperrors.ErrTrackingInfoRequired
	}
	if to != models.OrderStatusShipped {
		tracking = nil
	}

	from := order.OrderStatus
	if err := s.store.UpdateOrderStatusTx(ctx, orderID, to, tracking); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.OrderStatus = to
	if tracking != nil {
		order.TrackingProvider = &tracking.Provider
		order.TrackingID = &tracking.TrackingID
	}

	util.OrderTransitionsTotal.WithLabelValues(to).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("to", to))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: s.now(),
		},
		OrderID:    orderID,
		UserID:     order.UserID,
		FromStatus: from,
		ToStatus:   to,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return order, nil
}

// Cancel cancels an order on the customer's or an admin's behalf.
// Customers may only cancel pending or confirmed orders inside the
// cancellation window. A paid order is marked refunded; an unpaid
// order returns its coupon reservation.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, requestedBy string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if models.IsTerminalStatus(order.OrderStatus) {
		util.OrderTransitionsRejected.WithLabelValues("terminal").Inc()
		return nil, fmt.Errorf("%w: order %d is %s", apperrors.ErrOrderTerminal, orderID, order.OrderStatus)
	}
	if !models.CanTransition(order.OrderStatus, models.OrderStatusCancelled) {
		util.OrderTransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, order.OrderStatus, models.OrderStatusCancelled)
	}
	if s.now().Sub(order.CreatedAt) > s.cancelWindow {
		util.OrderTransitionsRejected.WithLabelValues("window_expired").Inc()
		return nil, fmt.Errorf("%w: order %d created at %s", apperrors.ErrCancellationWindowExpired,
			orderID, order.CreatedAt.Format(time.RFC3339))
	}

	from := order.OrderStatus
	if err := s.store.UpdateOrderStatusTx(ctx, orderID, models.OrderStatusCancelled, nil); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.OrderStatus = models.OrderStatusCancelled

	if order.PaymentStatus == models.PaymentStatusPaid {
		if err := s.store.UpdatePaymentStatus(ctx, orderID, models.PaymentStatusRefunded); err != nil {
			s.logger.Error("Failed to mark cancelled order refunded",
				zap.Int64("order_id", orderID), zap.Error(err))
		} else {
			order.PaymentStatus = models.PaymentStatusRefunded
		}
	} else if order.CouponCode != nil {
		// Detach before releasing so the open cart cannot keep the
		// discount once the usage unit is back in the pool.
		if err := s.cart.DetachCoupon(ctx, order.UserID, *order.CouponCode); err != nil {
			s.logger.Error("Failed to detach coupon from cart on cancellation",
				zap.Int64("order_id", orderID),
				zap.String("code", *order.CouponCode),
				zap.Error(err))
		}
		if err := s.coupons.Release(ctx, *order.CouponCode); err != nil {
			s.logger.Error("Failed to release coupon on cancellation",
				zap.Int64("order_id", orderID),
				zap.String("code", *order.CouponCode),
				zap.Error(err))
		}
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("requested_by", requestedBy))

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: s.now(),
		},
		OrderID:     orderID,
		UserID:      order.UserID,
		RequestedBy: requestedBy,
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return order, nil
}

// GetOrder returns a user's order with items and status history.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, order)
}

// GetOrderAdmin returns any order with items and status history.
func (s *OrderService) GetOrderAdmin(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, order)
}

func (s *OrderService) detail(ctx context.Context, order *models.Order) (*OrderDetail, error) {
	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.GetStatusHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Items: items, History: history}, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}
