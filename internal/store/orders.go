package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront-service/internal/models"

	"github.com/lib/pq"
)

// StockDecrement is one product stock mutation applied during checkout.
type StockDecrement struct {
	ProductID int64
	Quantity  int
}

// CreateOrderTx runs the whole checkout write set in one transaction:
// the order row, its frozen item snapshots, the clamped stock decrements
// and the cart clear. Either all of it commits or none of it does. The
// stock UPDATEs take row locks, so two checkouts touching the same
// product serialize instead of losing an update.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, decrements []StockDecrement) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_number, customer_name, customer_email, subtotal, tax, total, status, session_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.OrderNumber, order.CustomerName, order.CustomerEmail,
		order.Subtotal, order.Tax, order.Total, order.Status,
		order.SessionID, order.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		item := &order.Items[i]
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, d := range decrements {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = GREATEST(stock - $1, 0), updated_at = NOW() WHERE id = $2",
			d.Quantity, d.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", d.ProductID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = $1", order.SessionID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET total = 0, updated_at = NOW() WHERE session_id = $1", order.SessionID); err != nil {
		return fmt.Errorf("failed to reset cart total: %w", err)
	}

	return tx.Commit()
}

// IsUniqueViolation reports whether err is a Postgres unique violation
// on a constraint whose name contains the given fragment.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, constraint)
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItemsByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// GetOrderByIdempotencyKey returns the order recorded under the key, or
// nil when the key has not been seen.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// GetOrdersByEmail retrieves a customer's orders, newest first
func (s *Store) GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_email = $1 ORDER BY created_at DESC", email)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	return nil
}
