package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// GetCart retrieves the cart and its line items for a session, in the
// order the lines were added.
func (s *Store) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cart %s: %w", sessionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items := []models.CartItem{}
	err = s.db.SelectContext(ctx, &items,
		"SELECT id, session_id, product_id, quantity, unit_price FROM cart_items WHERE session_id = $1 ORDER BY seq",
		sessionID)
	if err != nil {
		return nil, err
	}

	cart.Items = items
	return &cart, nil
}

// CreateCart persists an empty cart for the session. Safe to call when
// the cart already exists.
func (s *Store) CreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO carts (session_id, total) VALUES ($1, 0) ON CONFLICT (session_id) DO NOTHING",
		sessionID)
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

// SaveCart replaces the cart's line items and total in one transaction.
// The cart row must already exist.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE carts SET total = $1, updated_at = NOW() WHERE session_id = $2",
		cart.Total, cart.SessionID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart %s: %w", cart.SessionID, models.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = $1", cart.SessionID); err != nil {
		return err
	}

	for _, item := range cart.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, session_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			item.ID, cart.SessionID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	return tx.Commit()
}

// ClearCart empties the cart and resets its total. The cart row is kept.
func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE carts SET total = 0, updated_at = NOW() WHERE session_id = $1", sessionID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart %s: %w", sessionID, models.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = $1", sessionID); err != nil {
		return err
	}

	return tx.Commit()
}
