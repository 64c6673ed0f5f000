package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
)

// CreateOrderTx inserts the order snapshot, its items and the first
// status history row in one transaction.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, coupon_code, items_total, discount, tax_amount,
			shipping_charges, total_amount, currency, payment_method, payment_status,
			order_status, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.UserID, order.CouponCode, order.ItemsTotal, order.Discount, order.TaxAmount,
		order.ShippingCharges, order.TotalAmount, order.Currency, order.PaymentMethod,
		order.PaymentStatus, order.OrderStatus, order.ShippingAddress); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		itemQuery := `
			INSERT INTO order_items (order_id, product_id, product_name, quantity,
				unit_price, size, color, design_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`

		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].Quantity,
			items[i].UnitPrice, items[i].Size, items[i].Color, items[i].DesignRef); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, status) VALUES ($1, $2)",
		order.ID, order.OrderStatus); err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUser retrieves an order scoped to its owner
func (s *Store) GetOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItems retrieves the snapshot lines of an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetStatusHistory retrieves the append-only history of an order
func (s *Store) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY id", orderID)
	return entries, err
}

// UpdateOrderStatusTx moves the order to a new status and appends the
// history row in one transaction. Tracking info is set only when
// provided.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, orderID int64, status string, tracking *models.TrackingInfo) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if tracking != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET order_status = $1, tracking_provider = $2,
				tracking_id = $3, updated_at = NOW() WHERE id = $4`,
			status, tracking.Provider, tracking.TrackingID, orderID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2",
			status, orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, status) VALUES ($1, $2)",
		orderID, status); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return tx.Commit()
}

// SetGatewayOrderID records the gateway order reference on the order
func (s *Store) SetGatewayOrderID(ctx context.Context, orderID int64, gatewayOrderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2",
		gatewayOrderID, orderID)
	return err
}

// UpdatePaymentStatus updates only the payment status
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// CreatePaymentAttempt records a gateway callback
func (s *Store) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (order_id, gateway_order_id, gateway_payment_id,
			signature, verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, attempt, query,
		attempt.OrderID, attempt.GatewayOrderID, attempt.GatewayPaymentID,
		attempt.Signature, attempt.Verified)
}

// GetVerifiedAttempt returns the verified payment attempt of an order,
// or nil when the order has none.
func (s *Store) GetVerifiedAttempt(ctx context.Context, orderID int64) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := s.db.GetContext(ctx, &attempt,
		"SELECT * FROM payment_attempts WHERE order_id = $1 AND verified LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// MarkOrderPaidTx records the verified attempt, flips the payment
// status to paid and advances the order to confirmed, appending the
// history row in a single transaction.
func (s *Store) MarkOrderPaidTx(ctx context.Context, orderID int64, attempt *models.PaymentAttempt) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO payment_attempts (order_id, gateway_order_id, gateway_payment_id,
			signature, verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, attempt, query,
		attempt.OrderID, attempt.GatewayOrderID, attempt.GatewayPaymentID,
		attempt.Signature, attempt.Verified); err != nil {
		return fmt.Errorf("failed to insert payment attempt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, order_status = $2, updated_at = NOW()
		WHERE id = $3`,
		models.PaymentStatusPaid, models.OrderStatusConfirmed, orderID); err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, status) VALUES ($1, $2)",
		orderID, models.OrderStatusConfirmed); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return tx.Commit()
}
