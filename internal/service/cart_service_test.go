package service

import (
	"context"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture() (*CartService, *fakeProductStore, *fakeCartStore) {
	products := newFakeProductStore()
	carts := newFakeCartStore()
	return NewCartService(carts, products), products, carts
}

func TestCartGetOrCreateLazilyCreates(t *testing.T) {
	svc, _, carts := newCartFixture()
	ctx := context.Background()

	cart, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cart.SessionID)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	// The cart is persisted, not just returned.
	_, err = carts.GetCart(ctx, "sess-1")
	assert.NoError(t, err)
}

func TestCartAddItemCapturesPriceAndTotal(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Keyboard", Price: 49.99, Stock: 10})

	cart, err := svc.AddItem(ctx, "sess-1", p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.Equal(t, p.ID, item.ProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 49.99, item.UnitPrice)
	assert.InDelta(t, 99.98, cart.Total, 1e-9)
	require.NotNil(t, item.Product)
	assert.Equal(t, "Keyboard", item.Product.Name)
}

func TestCartAddItemMergeKeepsCapturedPrice(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Mug", Price: 10, Stock: 20})

	_, err := svc.AddItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)

	// Price change between adds must not touch the existing line.
	updated := *p
	updated.Price = 15
	require.NoError(t, products.UpdateProduct(ctx, &updated))

	cart, err := svc.AddItem(ctx, "sess-1", p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 10.0, cart.Items[0].UnitPrice)
	assert.InDelta(t, 30.0, cart.Total, 1e-9)
}

func TestCartAddItemOutOfStock(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Lamp", Price: 25, Stock: 1})

	_, err := svc.AddItem(ctx, "sess-1", p.ID, 2)
	assert.ErrorIs(t, err, models.ErrOutOfStock)

	// A rejected add leaves the cart untouched.
	cart, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.AddItem(context.Background(), "sess-1", 42, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCartAddItemInvalidQuantity(t *testing.T) {
	svc, products, _ := newCartFixture()
	p := products.add(models.Product{Name: "Pen", Price: 2, Stock: 5})

	_, err := svc.AddItem(context.Background(), "sess-1", p.ID, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCartUpdateItemSetsQuantity(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Book", Price: 12, Stock: 10})
	cart, err := svc.AddItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)

	cart, err = svc.UpdateItem(ctx, "sess-1", cart.Items[0].ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.InDelta(t, 48.0, cart.Total, 1e-9)
}

func TestCartUpdateItemZeroRemovesLine(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Book", Price: 12, Stock: 10})
	cart, err := svc.AddItem(ctx, "sess-1", p.ID, 2)
	require.NoError(t, err)

	cart, err = svc.UpdateItem(ctx, "sess-1", cart.Items[0].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
}

func TestCartUpdateItemUnknownLine(t *testing.T) {
	svc, _, carts := newCartFixture()
	carts.seed("sess-1")

	_, err := svc.UpdateItem(context.Background(), "sess-1", "no-such-line", 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCartRemoveItemRecomputesTotal(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p1 := products.add(models.Product{Name: "A", Price: 5, Stock: 10})
	p2 := products.add(models.Product{Name: "B", Price: 7, Stock: 10})

	_, err := svc.AddItem(ctx, "sess-1", p1.ID, 1)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "sess-1", p2.ID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)

	var removeID string
	for _, item := range cart.Items {
		if item.ProductID == p2.ID {
			removeID = item.ID
		}
	}

	cart, err = svc.RemoveItem(ctx, "sess-1", removeID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, p1.ID, cart.Items[0].ProductID)
	assert.InDelta(t, 5.0, cart.Total, 1e-9)
}

func TestCartClearKeepsCart(t *testing.T) {
	svc, products, carts := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Desk", Price: 100, Stock: 3})
	_, err := svc.AddItem(ctx, "sess-1", p.ID, 2)
	require.NoError(t, err)

	cart, err := svc.Clear(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	// The cart row survives clearing.
	_, err = carts.GetCart(ctx, "sess-1")
	assert.NoError(t, err)
}

func TestCartDeletedProductResolvesNil(t *testing.T) {
	svc, products, _ := newCartFixture()
	ctx := context.Background()

	p := products.add(models.Product{Name: "Chair", Price: 60, Stock: 5})
	_, err := svc.AddItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, products.DeleteProduct(ctx, p.ID))

	cart, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Nil(t, cart.Items[0].Product)
	// The line keeps its captured price even though the product is gone.
	assert.Equal(t, 60.0, cart.Items[0].UnitPrice)
}
