package service

import (
	"context"
	"errors"
	"fmt"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/redisclient"
	"paystack-fulfillment/internal/util"

	"go.uber.org/zap"
)

// ProductReader is the product read side of the store
type ProductReader interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// StockCache mirrors product stock for storefront reads
type StockCache interface {
	SetStock(ctx context.Context, productID string, quantity int) error
	GetStock(ctx context.Context, productID string) (int, error)
}

// InventoryClient serves stock reads from the cache, with Postgres as the
// source of truth
type InventoryClient struct {
	store  ProductReader
	cache  StockCache
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(store ProductReader, cache StockCache) *InventoryClient {
	return &InventoryClient{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetAvailableStock returns the stock of a product, refilling the cache on a miss
func (ic *InventoryClient) GetAvailableStock(ctx context.Context, productID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.GetAvailableStock")
	defer span.End()

	qty, err := ic.cache.GetStock(ctx, productID)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, redisclient.ErrCacheMiss) {
		ic.logger.Warn("Stock cache read failed, falling back to DB",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	product, err := ic.store.GetProductByID(ctx, productID)
	if err != nil {
		return 0, err
	}

	if err := ic.cache.SetStock(ctx, productID, product.StockQuantity); err != nil {
		ic.logger.Warn("Failed to refill stock cache", zap.String("product_id", productID), zap.Error(err))
	}
	return product.StockQuantity, nil
}

// RefreshStock re-reads a product's stock from Postgres and caches it.
// Stock events can arrive out of row-lock order, so the value carried by an
// event is never written directly.
func (ic *InventoryClient) RefreshStock(ctx context.Context, productID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.RefreshStock")
	defer span.End()

	product, err := ic.store.GetProductByID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to reload stock for %s: %w", productID, err)
	}
	if err := ic.cache.SetStock(ctx, productID, product.StockQuantity); err != nil {
		return 0, fmt.Errorf("failed to refresh stock for %s: %w", productID, err)
	}
	return product.StockQuantity, nil
}

// SyncInventoryToRedis copies every product's stock into the cache
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	ic.logger.Info("Starting inventory sync to Redis")

	products, err := ic.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	failed := 0
	for _, product := range products {
		if err := ic.cache.SetStock(ctx, product.ID, product.StockQuantity); err != nil {
			failed++
			ic.logger.Error("Failed to init Redis inventory",
				zap.String("product_id", product.ID),
				zap.Error(err))
		}
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", len(products)), zap.Int("failed", failed))
	return nil
}
