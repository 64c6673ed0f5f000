package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
)

// GetOrCreateCart returns the user's cart, creating it lazily on first
// use. Carts are never deleted, only cleared.
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	query := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING *`

	if err := s.db.GetContext(ctx, &cart, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get or create cart: %w", err)
	}
	return &cart, nil
}

// GetCartByUserID retrieves the user's cart without creating one
func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for user %d: %w", userID, apperrors.ErrCartNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartItems retrieves all items of a cart in insertion order
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

// FindCartItemByTuple looks up a line by its merge identity
// (product, size, color, design). Returns nil when no line matches.
func (s *Store) FindCartItemByTuple(ctx context.Context, cartID, productID int64, size, color, designRef *string) (*models.CartItem, error) {
	var item models.CartItem
	query := `
		SELECT * FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		  AND size IS NOT DISTINCT FROM $3
		  AND color IS NOT DISTINCT FROM $4
		  AND design_ref IS NOT DISTINCT FROM $5`

	err := s.db.GetContext(ctx, &item, query, cartID, productID, size, color, designRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem appends a new line with its pinned unit price
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, size, color, design_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, item, query,
		item.CartID, item.ProductID, item.Quantity, item.UnitPrice,
		item.Size, item.Color, item.DesignRef)
}

// AddCartItemQuantity merges quantity into an existing line
func (s *Store) AddCartItemQuantity(ctx context.Context, itemID int64, qty int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = quantity + $1 WHERE id = $2", qty, itemID)
	return err
}

// SetCartItemQuantity replaces a line's quantity
func (s *Store) SetCartItemQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3",
		qty, itemID, cartID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, apperrors.ErrCartItemNotFound)
	}
	return nil
}

// DeleteCartItem removes a line from the cart
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, apperrors.ErrCartItemNotFound)
	}
	return nil
}

// SetCartCoupon stores or clears the applied coupon reference
func (s *Store) SetCartCoupon(ctx context.Context, cartID int64, code *string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET coupon_code = $1, updated_at = NOW() WHERE id = $2", code, cartID)
	return err
}

// ClearCart removes all items and the coupon reference in one
// transaction. The cart row itself survives.
func (s *Store) ClearCart(ctx context.Context, cartID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET coupon_code = NULL, updated_at = NOW() WHERE id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart coupon: %w", err)
	}

	return tx.Commit()
}
