package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const productCacheTTL = 5 * time.Minute

// ProductService handles catalog reads and admin mutations
type ProductService struct {
	store       ProductStore
	cache       ProductCache
	readTimeout time.Duration
	logger      *zap.Logger
}

// NewProductService creates a new product service. readTimeout is the
// fixed ceiling applied to every catalog read.
func NewProductService(store ProductStore, cache ProductCache, readTimeout time.Duration) *ProductService {
	return &ProductService{
		store:       store,
		cache:       cache,
		readTimeout: readTimeout,
		logger:      util.GetLogger(),
	}
}

// List retrieves products, optionally filtered by category equality and
// a case-insensitive search over name/description.
func (ps *ProductService) List(ctx context.Context, category, search string) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.readTimeout)
	defer cancel()

	products, err := ps.store.ListProducts(ctx, category, search)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return products, nil
}

// Get retrieves a single product, serving from cache when possible.
func (ps *ProductService) Get(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.readTimeout)
	defer cancel()

	cached, err := ps.cache.GetCachedProduct(ctx, id)
	if err != nil {
		ps.logger.Warn("Product cache read failed, falling back to DB",
			zap.Int64("product_id", id),
			zap.Error(err))
	}
	if cached != nil {
		util.ProductCacheHitsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	util.ProductCacheHitsTotal.WithLabelValues("miss").Inc()

	product, err := ps.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, mapReadErr(err)
	}

	if err := ps.cache.CacheProduct(ctx, product, productCacheTTL); err != nil {
		ps.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return product, nil
}

// Create validates and persists a new product
func (ps *ProductService) Create(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return ps.store.CreateProduct(ctx, p)
}

// ProductUpdate carries the fields of a partial product update. Nil
// fields are left unchanged.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *float64
	Stock       *int
	Category    *string
	ImageURL    *string
}

// Update applies a partial update to an existing product and drops the
// cached copy.
func (ps *ProductService) Update(ctx context.Context, id int64, update ProductUpdate) (*models.Product, error) {
	product, err := ps.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.Stock != nil {
		product.Stock = *update.Stock
	}
	if update.Category != nil {
		product.Category = *update.Category
	}
	if update.ImageURL != nil {
		product.ImageURL = *update.ImageURL
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := ps.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	if err := ps.cache.InvalidateProducts(ctx, id); err != nil {
		ps.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}
	return product, nil
}

// Delete removes a product and drops the cached copy
func (ps *ProductService) Delete(ctx context.Context, id int64) error {
	if err := ps.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if err := ps.cache.InvalidateProducts(ctx, id); err != nil {
		ps.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}
	return nil
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required: %w", models.ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("product price must be non-negative: %w", models.ErrValidation)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product stock must be non-negative: %w", models.ErrValidation)
	}
	return nil
}

// mapReadErr surfaces a timed-out catalog read as a service-unavailable
// condition.
func mapReadErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("catalog read timed out: %w", models.ErrUnavailable)
	}
	return err
}
