package worker

import (
	"context"
	"fmt"
	"log"

	"teenprint-core/internal/broker"
	"teenprint-core/internal/models"
	"teenprint-core/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers a customer-facing message for an order. The
// default implementation only logs; a push/email sender plugs in here.
type Notifier interface {
	Notify(ctx context.Context, userID int64, subject, body string) error
}

// LogNotifier writes notifications to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

// Notify logs the notification instead of delivering it.
func (n *LogNotifier) Notify(_ context.Context, userID int64, subject, body string) error {
	n.logger.Info("Notification",
		zap.Int64("user_id", userID),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// NotificationWorker consumes order and payment events and turns them
// into customer notifications.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     Notifier
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		notifier: notifier,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnPaymentVerified(w.handlePaymentVerified)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return w.notifier.Notify(ctx, event.UserID,
		"Order placed",
		fmt.Sprintf("Your order #%d for ₹%.2f has been placed.", event.OrderID, paise(event.TotalAmount)))
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.notifier.Notify(ctx, event.UserID,
		"Order update",
		fmt.Sprintf("Your order #%d is now %s.", event.OrderID, event.ToStatus))
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return w.notifier.Notify(ctx, event.UserID,
		"Order cancelled",
		fmt.Sprintf("Your order #%d has been cancelled.", event.OrderID))
}

func (w *NotificationWorker) handlePaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error {
	return w.notifier.Notify(ctx, event.UserID,
		"Payment received",
		fmt.Sprintf("Payment of ₹%.2f for order #%d is confirmed.", paise(event.Amount), event.OrderID))
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return w.notifier.Notify(ctx, event.UserID,
		"Payment failed",
		fmt.Sprintf("Payment for order #%d could not be verified. Please try again.", event.OrderID))
}

func paise(amount int64) float64 {
	return float64(amount) / 100
}
