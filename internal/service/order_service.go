package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const orderNumberAttempts = 3

// OrderService runs the checkout transition and order reads/updates
type OrderService struct {
	orders      OrderStore
	carts       CartStore
	products    ProductStore
	cache       ProductCache
	coordinator CheckoutCoordinator
	publisher   EventPublisher
	taxRate     float64
	lockTTL     time.Duration
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	carts CartStore,
	products ProductStore,
	cache ProductCache,
	coordinator CheckoutCoordinator,
	publisher EventPublisher,
	taxRate float64,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		orders:      orders,
		carts:       carts,
		products:    products,
		cache:       cache,
		coordinator: coordinator,
		publisher:   publisher,
		taxRate:     taxRate,
		lockTTL:     lockTTL,
		logger:      util.GetLogger(),
	}
}

// CheckoutRequest represents a request to turn a cart into an order
type CheckoutRequest struct {
	CustomerName   string `json:"customerName" binding:"required"`
	CustomerEmail  string `json:"customerEmail" binding:"required"`
	SessionID      string `json:"sessionId" binding:"required"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Checkout turns the session's cart into an immutable order snapshot,
// decrements product stock (clamped at zero) and clears the cart. The
// whole write set commits in one database transaction, so a failure
// leaves every document untouched.
func (os *OrderService) Checkout(ctx context.Context, req *CheckoutRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCheckout(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if existing, err := os.findByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			os.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	lockKey := fmt.Sprintf("checkout:%s", req.SessionID)
	acquired, err := os.coordinator.AcquireLock(ctx, lockKey, os.lockTTL)
	if err != nil {
		// The transaction below is still safe without the lock.
		os.logger.Warn("Checkout lock unavailable, proceeding without it",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	} else if !acquired {
		util.OrdersFailedTotal.WithLabelValues("busy").Inc()
		return nil, fmt.Errorf("session %s: %w", req.SessionID, models.ErrCheckoutBusy)
	} else {
		defer func() {
			if err := os.coordinator.ReleaseLock(ctx, lockKey); err != nil {
				os.logger.Warn("Failed to release checkout lock", zap.Error(err))
			}
		}()
	}

	cart, err := os.carts.GetCart(ctx, req.SessionID)
	if errors.Is(err, models.ErrNotFound) {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, fmt.Errorf("no cart for session %s: %w", req.SessionID, models.ErrEmptyCart)
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, fmt.Errorf("session %s: %w", req.SessionID, models.ErrEmptyCart)
	}

	resolved, err := os.resolveProducts(ctx, cart)
	if err != nil {
		return nil, err
	}

	// Subtotal is the total the cart aggregate already maintains, not a
	// recomputation from live product prices.
	subtotal := cart.Total
	tax := subtotal * os.taxRate
	total := subtotal + tax

	items := make([]models.OrderItem, 0, len(cart.Items))
	decrements := make([]store.StockDecrement, 0, len(cart.Items))
	for _, line := range cart.Items {
		product := resolved[line.ProductID]
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.UnitPrice * float64(line.Quantity),
		})
		decrements = append(decrements, store.StockDecrement{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order := &models.Order{
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
		Status:         models.OrderStatusPending,
		SessionID:      req.SessionID,
		IdempotencyKey: req.IdempotencyKey,
		Items:          items,
	}

	for attempt := 0; ; attempt++ {
		order.OrderNumber = generateOrderNumber()
		err = os.orders.CreateOrderTx(ctx, order, decrements)
		if err == nil {
			break
		}
		if store.IsUniqueViolation(err, "order_number") && attempt < orderNumberAttempts-1 {
			os.logger.Warn("Order number collision, regenerating",
				zap.String("order_number", order.OrderNumber))
			continue
		}
		if store.IsUniqueViolation(err, "idempotency") {
			// A concurrent retry with the same key won the race.
			return os.findByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	os.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Total))

	// Stock changed, so cached product documents are stale.
	productIDs := make([]int64, 0, len(decrements))
	for _, d := range decrements {
		productIDs = append(productIDs, d.ProductID)
	}
	if err := os.cache.InvalidateProducts(ctx, productIDs...); err != nil {
		os.logger.Warn("Failed to invalidate product cache after checkout", zap.Error(err))
	}

	if req.IdempotencyKey != "" {
		if err := os.coordinator.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, 24*time.Hour); err != nil {
			os.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   order.SessionID,
		Total:       order.Total,
		Items:       toEventItems(order.Items),
	}
	if err := os.publisher.PublishOrderCreated(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	for i := range order.Items {
		order.Items[i].Product = resolved[order.Items[i].ProductID]
	}
	return order, nil
}

// findByIdempotencyKey checks redis first, then the database, for an
// order already recorded under the key.
func (os *OrderService) findByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if orderID, ok, err := os.coordinator.GetIdempotentOrderID(ctx, key); err != nil {
		os.logger.Warn("Idempotency cache read failed, falling back to DB", zap.Error(err))
	} else if ok {
		return os.orders.GetOrderByID(ctx, orderID)
	}
	return os.orders.GetOrderByIdempotencyKey(ctx, key)
}

// resolveProducts loads current product records for every cart line.
func (os *OrderService) resolveProducts(ctx context.Context, cart *models.Cart) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, line := range cart.Items {
		ids = append(ids, line.ProductID)
	}

	products, err := os.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, line := range cart.Items {
		if byID[line.ProductID] == nil {
			return nil, fmt.Errorf("product %d no longer exists: %w", line.ProductID, models.ErrNotFound)
		}
	}
	return byID, nil
}

// GetOrder retrieves an order with its items
func (os *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return os.orders.GetOrderByID(ctx, orderID)
}

// ListOrders retrieves all orders with their items, newest first
func (os *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := os.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return os.attachItems(ctx, orders)
}

// GetOrdersByEmail retrieves a customer's orders, newest first
func (os *OrderService) GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	orders, err := os.orders.GetOrdersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return os.attachItems(ctx, orders)
}

func (os *OrderService) attachItems(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	for i := range orders {
		items, err := os.orders.GetOrderItemsByOrderID(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// SetStatus updates an order's status. Any of the four valid statuses
// may replace any other; re-setting the current status succeeds and
// changes nothing.
func (os *OrderService) SetStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, models.ErrInvalidStatus)
	}

	order, err := os.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	oldStatus := order.Status
	if err := os.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.Status = status

	util.OrderStatusChangesTotal.WithLabelValues(status).Inc()
	os.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", status))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OldStatus:   oldStatus,
		NewStatus:   status,
	}
	if err := os.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return order, nil
}

func validateCheckout(req *CheckoutRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" ||
		strings.TrimSpace(req.CustomerEmail) == "" ||
		strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("customer name, email and session ID are required: %w", models.ErrValidation)
	}
	if !models.ValidEmail(strings.TrimSpace(req.CustomerEmail)) {
		return fmt.Errorf("customer email %q is not valid: %w", req.CustomerEmail, models.ErrValidation)
	}
	return nil
}

// generateOrderNumber builds a human-readable order number. The UUID
// suffix plus the unique constraint on order_number (with a bounded
// retry on conflict) keeps numbers collision-free.
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}

func toEventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}
