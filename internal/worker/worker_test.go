package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"teenprint-core/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	subjects []string
	userIDs  []int64
}

func (c *captureNotifier) Notify(_ context.Context, userID int64, subject, _ string) error {
	c.subjects = append(c.subjects, subject)
	c.userIDs = append(c.userIDs, userID)
	return nil
}

func eventMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestNotificationWorkerRouting(t *testing.T) {
	notifier := &captureNotifier{}
	w := NewNotificationWorker(nil, notifier)
	ctx := context.Background()

	base := func(eventType string) models.BaseEvent {
		return models.BaseEvent{EventID: "e1", EventType: eventType, Timestamp: time.Now()}
	}

	msgs := []kafka.Message{
		eventMessage(t, &models.OrderCreatedEvent{
			BaseEvent: base(models.EventTypeOrderCreated), OrderID: 1, UserID: 7, TotalAmount: 89960,
		}),
		eventMessage(t, &models.OrderStatusChangedEvent{
			BaseEvent: base(models.EventTypeOrderStatusChanged), OrderID: 1, UserID: 7,
			FromStatus: models.OrderStatusConfirmed, ToStatus: models.OrderStatusShipped,
		}),
		eventMessage(t, &models.OrderCancelledEvent{
			BaseEvent: base(models.EventTypeOrderCancelled), OrderID: 1, UserID: 7, RequestedBy: "customer",
		}),
		eventMessage(t, &models.PaymentVerifiedEvent{
			BaseEvent: base(models.EventTypePaymentVerified), OrderID: 1, UserID: 7, Amount: 89960,
		}),
		eventMessage(t, &models.PaymentFailedEvent{
			BaseEvent: base(models.EventTypePaymentFailed), OrderID: 1, UserID: 7, Reason: "signature_mismatch",
		}),
	}

	for _, msg := range msgs {
		require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	}

	assert.Equal(t, []string{
		"Order placed",
		"Order update",
		"Order cancelled",
		"Payment received",
		"Payment failed",
	}, notifier.subjects)
	for _, id := range notifier.userIDs {
		assert.Equal(t, int64(7), id)
	}
}

func TestNotificationWorkerIgnoresUnknownEvents(t *testing.T) {
	notifier := &captureNotifier{}
	w := NewNotificationWorker(nil, notifier)

	msg := eventMessage(t, &models.BaseEvent{EventID: "e2", EventType: "STOCK_SYNCED"})
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	assert.Empty(t, notifier.subjects)
}
