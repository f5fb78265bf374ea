package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/lib/pq"
)

// In-memory implementations of the persistence ports. They apply the
// same side effects the SQL store does (clamped stock decrements, cart
// clearing inside the order transaction) so service behavior can be
// exercised end to end without Postgres, Redis or Kafka.

type fakeProductStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*models.Product
	listErr  error
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: make(map[int64]*models.Product)}
}

func (f *fakeProductStore) add(p models.Product) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.products[p.ID] = &p
	return &p
}

func (f *fakeProductStore) ListProducts(ctx context.Context, category, search string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.Product{}
	for _, p := range f.products {
		if category != "" && p.Category != category {
			continue
		}
		if search != "" {
			needle := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Description), needle) {
				continue
			}
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeProductStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return fmt.Errorf("product %d: %w", p.ID, models.ErrNotFound)
	}
	cp := *p
	cp.UpdatedAt = time.Now()
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeProductStore) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductStore) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeCartStore struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[string]*models.Cart)}
}

func copyCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = make([]models.CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

func (f *fakeCartStore) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[sessionID]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", sessionID, models.ErrNotFound)
	}
	return copyCart(cart), nil
}

func (f *fakeCartStore) CreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cart, ok := f.carts[sessionID]; ok {
		return copyCart(cart), nil
	}
	cart := &models.Cart{SessionID: sessionID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.carts[sessionID] = cart
	return copyCart(cart), nil
}

func (f *fakeCartStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.SessionID] = copyCart(cart)
	return nil
}

func (f *fakeCartStore) ClearCart(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[sessionID]
	if !ok {
		return fmt.Errorf("cart %s: %w", sessionID, models.ErrNotFound)
	}
	cart.Total = 0
	cart.Items = nil
	return nil
}

// seed installs a cart with the given lines, totals recomputed.
func (f *fakeCartStore) seed(sessionID string, items ...models.CartItem) {
	cart := &models.Cart{SessionID: sessionID, Items: items}
	cart.RecomputeTotal()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = cart
}

type fakeOrderStore struct {
	mu         sync.Mutex
	nextID     int64
	orders     map[int64]*models.Order
	products   *fakeProductStore
	carts      *fakeCartStore
	txCalls    int
	createErrs []error
}

func newFakeOrderStore(products *fakeProductStore, carts *fakeCartStore) *fakeOrderStore {
	return &fakeOrderStore{
		orders:   make(map[int64]*models.Order),
		products: products,
		carts:    carts,
	}
}

func uniqueViolation(constraint string) *pq.Error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = make([]models.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

func (f *fakeOrderStore) CreateOrderTx(ctx context.Context, order *models.Order, decrements []store.StockDecrement) error {
	f.mu.Lock()
	f.txCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			f.mu.Unlock()
			return err
		}
	}
	for _, existing := range f.orders {
		if existing.OrderNumber == order.OrderNumber {
			f.mu.Unlock()
			return uniqueViolation("orders_order_number_key")
		}
		if order.IdempotencyKey != "" && existing.IdempotencyKey == order.IdempotencyKey {
			f.mu.Unlock()
			return uniqueViolation("orders_idempotency_key_idx")
		}
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	f.orders[order.ID] = copyOrder(order)
	f.mu.Unlock()

	f.products.mu.Lock()
	for _, d := range decrements {
		if p, ok := f.products.products[d.ProductID]; ok {
			p.Stock -= d.Quantity
			if p.Stock < 0 {
				p.Stock = 0
			}
		}
	}
	f.products.mu.Unlock()

	return f.carts.ClearCart(ctx, order.SessionID)
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return copyOrder(order), nil
}

func (f *fakeOrderStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.IdempotencyKey == key {
			return copyOrder(order), nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, order := range f.orders {
		cp := copyOrder(order)
		cp.Items = nil
		out = append(out, *cp)
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, order := range f.orders {
		if order.CustomerEmail == email {
			cp := copyOrder(order)
			cp.Items = nil
			out = append(out, *cp)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return []models.OrderItem{}, nil
	}
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	return items, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	order.Status = status
	return nil
}

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, models.ErrEmailTaken)
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	cp := *user
	return &cp, nil
}

type fakeProductCache struct {
	mu     sync.Mutex
	items  map[int64]*models.Product
	getErr error
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{items: make(map[int64]*models.Product)}
}

func (f *fakeProductCache) GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.items[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductCache) CacheProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *product
	f.items[product.ID] = &cp
	return nil
}

func (f *fakeProductCache) InvalidateProducts(ctx context.Context, productIDs ...int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range productIDs {
		delete(f.items, id)
	}
	return nil
}

type fakeCoordinator struct {
	mu       sync.Mutex
	locks    map[string]bool
	idem     map[string]int64
	lockErr  error
	denyLock bool
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		locks: make(map[string]bool),
		idem:  make(map[string]int64),
	}
}

func (f *fakeCoordinator) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.denyLock || f.locks[lockKey] {
		return false, nil
	}
	f.locks[lockKey] = true
	return true, nil
}

func (f *fakeCoordinator) ReleaseLock(ctx context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, lockKey)
	return nil
}

func (f *fakeCoordinator) GetIdempotentOrderID(ctx context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.idem[key]
	return id, ok, nil
}

func (f *fakeCoordinator) SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idem[key] = orderID
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	status  []*models.OrderStatusChangedEvent
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = append(f.status, event)
	return nil
}
