package worker

import (
	"context"

	"paystack-fulfillment/internal/broker"
	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the order-events topic
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockRefresher reloads a product's stock into the storefront cache
type StockRefresher interface {
	RefreshStock(ctx context.Context, productID string) (int, error)
}

// StockCacheWorker keeps the Redis stock cache in step with Postgres. A
// STOCK_ADJUSTED event only names the product to reload.
type StockCacheWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockCacheWorker creates a new stock cache worker
func NewStockCacheWorker(consumer MessageSource, inventory StockRefresher) *StockCacheWorker {
	w := &StockCacheWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnStockAdjusted(func(ctx context.Context, event *models.StockAdjustedEvent) error {
		qty, err := inventory.RefreshStock(ctx, event.ProductID)
		if err != nil {
			return err
		}
		if qty != event.NewStock {
			w.logger.Debug("Stock moved past event",
				zap.String("product_id", event.ProductID),
				zap.Int("event_stock", event.NewStock),
				zap.Int("cached_stock", qty))
		}
		return nil
	})
	w.eventHandler.OnFulfillmentAnomaly(w.handleAnomaly)

	return w
}

// Start starts the worker
func (w *StockCacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock cache worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// HandleMessage processes one order-events message
func (w *StockCacheWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *StockCacheWorker) Stop() error {
	w.logger.Info("Stopping stock cache worker")
	return w.consumer.Close()
}

// handleAnomaly surfaces reconciliation work in the worker's log stream
func (w *StockCacheWorker) handleAnomaly(_ context.Context, event *models.FulfillmentAnomalyEvent) error {
	w.logger.Warn("Order needs reconciliation",
		zap.String("kind", event.Kind),
		zap.String("order_id", event.OrderID),
		zap.String("reference", event.Reference),
		zap.String("product_id", event.ProductID),
		zap.String("detail", event.Detail))
	return nil
}
