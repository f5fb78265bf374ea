package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService implements the per-session cart aggregate
type CartService struct {
	carts    CartStore
	products ProductStore
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartStore, products ProductStore) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   util.GetLogger(),
	}
}

// GetOrCreate returns the cart for the session, lazily creating and
// persisting an empty one if absent.
func (cs *CartService) GetOrCreate(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := cs.carts.GetCart(ctx, sessionID)
	if errors.Is(err, models.ErrNotFound) {
		cart, err = cs.carts.CreateCart(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return cs.resolveItems(ctx, cart)
}

// AddItem adds quantity of a product to the cart. An existing line for
// the product keeps its originally captured unit price; only new lines
// capture the current product price.
func (cs *CartService) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", models.ErrValidation)
	}

	product, err := cs.products.GetProductByID(ctx, productID)
	if err != nil {
		util.CartItemsRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if product.Stock < quantity {
		util.CartItemsRejectedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, fmt.Errorf("product %q has %d in stock, %d requested: %w",
			product.Name, product.Stock, quantity, models.ErrOutOfStock)
	}

	cart, err := cs.carts.GetCart(ctx, sessionID)
	if errors.Is(err, models.ErrNotFound) {
		cart, err = cs.carts.CreateCart(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, models.CartItem{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		})
	}

	cart.RecomputeTotal()
	if err := cs.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	cs.logger.Info("Cart item added",
		zap.String("session_id", sessionID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return cs.resolveItems(ctx, cart)
}

// UpdateItem sets a line's quantity. A quantity of zero or less removes
// the line entirely. Stock is not re-checked here.
func (cs *CartService) UpdateItem(ctx context.Context, sessionID, itemID string, quantity int) (*models.Cart, error) {
	cart, err := cs.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("cart item %s: %w", itemID, models.ErrNotFound)
	}

	if quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		cart.Items[idx].Quantity = quantity
	}

	cart.RecomputeTotal()
	if err := cs.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("update").Inc()
	return cs.resolveItems(ctx, cart)
}

// RemoveItem removes a line from the cart
func (cs *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (*models.Cart, error) {
	cart, err := cs.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("cart item %s: %w", itemID, models.ErrNotFound)
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.RecomputeTotal()
	if err := cs.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return cs.resolveItems(ctx, cart)
}

// Clear empties the cart and resets its total. The cart itself is kept.
func (cs *CartService) Clear(ctx context.Context, sessionID string) (*models.Cart, error) {
	if err := cs.carts.ClearCart(ctx, sessionID); err != nil {
		return nil, err
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return cs.carts.GetCart(ctx, sessionID)
}

// resolveItems attaches current product records to the cart lines for
// response purposes. Lines whose product has since been deleted keep a
// nil product.
func (cs *CartService) resolveItems(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if len(cart.Items) == 0 {
		return cart, nil
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := cs.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range cart.Items {
		cart.Items[i].Product = byID[cart.Items[i].ProductID]
	}
	return cart, nil
}
