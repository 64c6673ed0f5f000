package service

import (
	"context"
	"fmt"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/gateway"
	"teenprint-core/internal/models"
	"teenprint-core/internal/redisclient"
	"teenprint-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService reconciles gateway callbacks against orders. It is
// the only writer of payment status.
type PaymentService struct {
	store          OrderStore
	gateway        PaymentGateway
	cart           CartCheckout
	redis          *redisclient.Client
	eventPublisher EventSink
	currency       string
	logger         *zap.Logger
	now            func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store OrderStore,
	gw PaymentGateway,
	cart CartCheckout,
	redis *redisclient.Client,
	eventPublisher EventSink,
	currency string,
) *PaymentService {
	return &PaymentService{
		store:          store,
		gateway:        gw,
		cart:           cart,
		redis:          redis,
		eventPublisher: eventPublisher,
		currency:       currency,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// InitiatePaymentResponse carries what the client needs to open the
// gateway checkout.
type InitiatePaymentResponse struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// VerifyPaymentRequest is the gateway callback payload.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// InitiatePayment registers the order at the gateway and stores the
// gateway's order id. Online orders only.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID, userID int64) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiatePayment")
	defer span.End()

	order, err := s.store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if !models.IsOnlinePayment(order.PaymentMethod) {
		return nil, &apperrors.Error{
			Code:    "PAYMENT_NOT_APPLICABLE",
			Kind:    apperrors.KindValidation,
			Message: "cash-on-delivery orders are not paid through the gateway",
		}
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: order %d is already paid", apperrors.ErrAlreadyReconciled, orderID)
	}
	if models.IsTerminalStatus(order.OrderStatus) {
		return nil, fmt.Errorf("%w: order %d is %s", apperrors.ErrOrderTerminal, orderID, order.OrderStatus)
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, &gateway.OrderRequest{
		Amount:   order.TotalAmount,
		Currency: s.currency,
		Receipt:  fmt.Sprintf("order_%d", orderID),
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SetGatewayOrderID(ctx, orderID, gwOrder.ID); err != nil {
		return nil, fmt.Errorf("failed to store gateway order id: %w", err)
	}

	util.PaymentInitiationsTotal.Inc()
	s.logger.Info("Payment initiated",
		zap.Int64("order_id", orderID),
		zap.String("gateway_order_id", gwOrder.ID))

	return &InitiatePaymentResponse{
		OrderID:        orderID,
		GatewayOrderID: gwOrder.ID,
		Amount:         order.TotalAmount,
		Currency:       s.currency,
	}, nil
}

// VerifyPayment reconciles a gateway callback. A repeat of an already
// verified callback is a no-op success; a conflicting callback for a
// paid order is rejected without touching the order.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderID, userID int64, req *VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment")
	defer span.End()

	if s.redis != nil {
		// Serialize callbacks per order across replicas. A callback
		// racing a held lock is a concurrent duplicate; the paid-state
		// check below stays the authoritative idempotency guard.
		lockKey := fmt.Sprintf("order:%d", orderID)
		acquired, err := s.redis.AcquireLock(ctx, lockKey, 10*time.Second)
		if err != nil {
			s.logger.Warn("Verification lock unavailable", zap.Error(err))
		} else if !acquired {
			return nil, fmt.Errorf("%w: order %d verification in progress", apperrors.ErrAlreadyReconciled, orderID)
		} else {
			defer func() {
				if err := s.redis.ReleaseLock(ctx, lockKey); err != nil {
					s.logger.Warn("Failed to release verification lock", zap.Error(err))
				}
			}()
		}
	}

	order, err := s.store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if !models.IsOnlinePayment(order.PaymentMethod) {
		return nil, &apperrors.Error{
			Code:    "PAYMENT_NOT_APPLICABLE",
			Kind:    apperrors.KindValidation,
			Message: "cash-on-delivery orders are not paid through the gateway",
		}
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		attempt, err := s.store.GetVerifiedAttempt(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if attempt != nil &&
			attempt.GatewayOrderID == req.GatewayOrderID &&
			attempt.GatewayPaymentID == req.GatewayPaymentID {
			return order, nil
		}
		return nil, fmt.Errorf("%w: order %d", apperrors.ErrAlreadyReconciled, orderID)
	}

	if order.GatewayOrderID == nil || *order.GatewayOrderID != req.GatewayOrderID {
		return nil, s.rejectCallback(ctx, order, req, "gateway_order_mismatch")
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		return nil, s.rejectCallback(ctx, order, req, "signature_mismatch")
	}

	attempt := &models.PaymentAttempt{
		OrderID:          orderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Verified:         true,
	}
	if err := s.store.MarkOrderPaidTx(ctx, orderID, attempt); err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	order.PaymentStatus = models.PaymentStatusPaid
	order.OrderStatus = models.OrderStatusConfirmed

	if err := s.cart.ClearAfterOrder(ctx, order.UserID); err != nil {
		s.logger.Error("Failed to clear cart after payment",
			zap.Int64("user_id", order.UserID), zap.Error(err))
	}

	util.PaymentVerifiedTotal.Inc()
	s.logger.Info("Payment verified",
		zap.Int64("order_id", orderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID))

	event := &models.PaymentVerifiedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentVerified,
			Timestamp: s.now(),
		},
		OrderID:          orderID,
		UserID:           order.UserID,
		GatewayPaymentID: req.GatewayPaymentID,
		Amount:           order.TotalAmount,
	}
	if err := s.eventPublisher.PublishPaymentVerified(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}

	return order, nil
}

// rejectCallback records the failed attempt, marks the payment failed
// and returns ErrSignatureMismatch. The order stays pending so the
// customer can retry.
func (s *PaymentService) rejectCallback(ctx context.Context, order *models.Order, req *VerifyPaymentRequest, reason string) error {
	util.PaymentFailedTotal.WithLabelValues(reason).Inc()

	attempt := &models.PaymentAttempt{
		OrderID:          order.ID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Verified:         false,
	}
	if err := s.store.CreatePaymentAttempt(ctx, attempt); err != nil {
		s.logger.Error("Failed to record payment attempt",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
	if err := s.store.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed); err != nil {
		s.logger.Error("Failed to mark payment failed",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}

	s.logger.Warn("Payment callback rejected",
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason),
		zap.String("gateway_payment_id", req.GatewayPaymentID))

	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: s.now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  reason,
	}
	if err := s.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	return fmt.Errorf("%w: order %d", apperrors.ErrSignatureMismatch, order.ID)
}
