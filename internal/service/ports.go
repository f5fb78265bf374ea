package service

import (
	"context"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

// Narrow persistence ports implemented by *store.Store. Services depend
// on these rather than the concrete store so business behavior can be
// exercised without Postgres.

type ProductStore interface {
	ListProducts(ctx context.Context, category, search string) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type CartStore interface {
	GetCart(ctx context.Context, sessionID string) (*models.Cart, error)
	CreateCart(ctx context.Context, sessionID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	ClearCart(ctx context.Context, sessionID string) error
}

type OrderStore interface {
	CreateOrderTx(ctx context.Context, order *models.Order, decrements []store.StockDecrement) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ProductCache is the read-through cache port implemented by
// *redisclient.Client.
type ProductCache interface {
	GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error)
	CacheProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context, productIDs ...int64) error
}

// CheckoutCoordinator covers the per-session locks and idempotency keys
// the checkout transition uses, implemented by *redisclient.Client.
type CheckoutCoordinator interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	GetIdempotentOrderID(ctx context.Context, key string) (int64, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
}

// EventPublisher is implemented by *broker.EventPublisher.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}
