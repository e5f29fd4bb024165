package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/store"
	"paystack-fulfillment/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FulfillmentStore is the persistence the webhook pipeline writes through
type FulfillmentStore interface {
	GetOrderByPaystackReference(ctx context.Context, reference string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status string) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	DecrementStock(ctx context.Context, productID string, quantity int) (store.StockChange, error)
	CreateInventoryLog(ctx context.Context, entry *models.InventoryLog) error
	CreateRevenueLog(ctx context.Context, entry *models.RevenueLog) error
}

// ReferenceCache is the fast-path dedup layer. It never replaces the
// unique constraint on orders.paystack_reference.
type ReferenceCache interface {
	ClaimReference(ctx context.Context, reference string, ttl time.Duration) (bool, error)
	ReleaseReference(ctx context.Context, reference string) error
	MarkReferenceProcessed(ctx context.Context, reference, orderID string, ttl time.Duration) error
	IsReferenceProcessed(ctx context.Context, reference string) (bool, error)
}

// EventPublisher emits fulfillment events
type EventPublisher interface {
	PublishOrderFulfilled(ctx context.Context, event *models.OrderFulfilledEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishFulfillmentAnomaly(ctx context.Context, event *models.FulfillmentAnomalyEvent) error
}

// FulfillmentConfig configures FulfillmentService
type FulfillmentConfig struct {
	SecretKey    string
	ClaimTTL     time.Duration
	ProcessedTTL time.Duration
}

// Webhook outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

// WebhookResult describes an acknowledged notification
type WebhookResult struct {
	Outcome        string `json:"outcome"`
	Message        string `json:"message"`
	OrderID        string `json:"order_id,omitempty"`
	ItemsFulfilled int    `json:"items_fulfilled,omitempty"`
	ItemsSkipped   int    `json:"items_skipped,omitempty"`
}

// FulfillmentService turns verified charge notifications into orders
type FulfillmentService struct {
	store     FulfillmentStore
	cache     ReferenceCache
	publisher EventPublisher
	cfg       FulfillmentConfig
	logger    *zap.Logger
}

// NewFulfillmentService creates a new fulfillment service. cache and
// publisher may be nil.
func NewFulfillmentService(
	store FulfillmentStore,
	cache ReferenceCache,
	publisher EventPublisher,
	cfg FulfillmentConfig,
) *FulfillmentService {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = time.Minute
	}
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = 7 * 24 * time.Hour
	}
	return &FulfillmentService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// ProcessWebhook authenticates a raw notification and fulfills it.
// Errors wrap one of the package sentinels for request-level rejections;
// any other error is an internal failure the gateway may retry.
func (s *FulfillmentService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.ProcessWebhook")
	defer span.End()

	if err := VerifySignature(s.cfg.SecretKey, rawBody, signature); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		util.SpanError(span, err)
		s.logger.Warn("Webhook rejected", zap.Error(err))
		return nil, err
	}

	var event models.PaystackEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	util.WebhooksReceivedTotal.WithLabelValues(event.Event).Inc()

	if event.Event != models.PaystackEventChargeSuccess {
		s.logger.Info("Ignoring webhook event", zap.String("event", event.Event))
		return &WebhookResult{Outcome: OutcomeIgnored, Message: "Event ignored"}, nil
	}

	data, err := event.Charge()
	if err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	result, err := s.fulfill(ctx, data)
	util.SpanError(span, err)
	return result, err
}

func (s *FulfillmentService) fulfill(ctx context.Context, data *models.PaystackChargeData) (*WebhookResult, error) {
	reference := data.Reference
	if reference == "" {
		util.WebhooksRejectedTotal.WithLabelValues("missing_reference").Inc()
		return nil, fmt.Errorf("%w: missing reference", ErrInvalidPayload)
	}

	logger := s.logger.With(zap.String("reference", reference))

	if s.cache != nil {
		done, err := s.cache.IsReferenceProcessed(ctx, reference)
		if err != nil {
			logger.Warn("Processed-marker lookup failed, falling back to database", zap.Error(err))
		} else if done {
			return s.duplicate(logger, "cache", ""), nil
		}
	}

	existing, err := s.store.GetOrderByPaystackReference(ctx, reference)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("lookup_error").Inc()
		return nil, fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing != nil {
		return s.duplicate(logger, "lookup", existing.ID), nil
	}

	if s.cache != nil {
		claimed, err := s.cache.ClaimReference(ctx, reference, s.cfg.ClaimTTL)
		switch {
		case err != nil:
			logger.Warn("Reference claim failed, relying on unique constraint", zap.Error(err))
		case !claimed:
			return s.duplicate(logger, "claim", ""), nil
		default:
			defer s.releaseClaim(logger, reference)
		}
	}

	cart := data.Metadata.CartItems
	if len(cart) == 0 {
		util.WebhooksRejectedTotal.WithLabelValues("empty_cart").Inc()
		logger.Warn("Charge notification without cart items")
		return nil, ErrEmptyCart
	}

	start := time.Now()
	defer func() {
		util.FulfillmentLatency.Observe(time.Since(start).Seconds())
	}()

	order := &models.Order{
		CustomerEmail:     data.Customer.Email,
		CustomerName:      data.Customer.FullName(),
		TotalAmount:       data.MajorAmount(),
		Status:            models.OrderStatusProcessing,
		PaymentStatus:     models.PaymentStatusSuccessful,
		PaymentReference:  reference,
		PaystackReference: reference,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			return s.duplicate(logger, "constraint", ""), nil
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	logger = logger.With(zap.String("order_id", order.ID))
	logger.Info("Order created", zap.String("total_amount", order.TotalAmount.String()), zap.Int("lines", len(cart)))

	totalCost := decimal.Zero
	fulfilled, skipped := 0, 0
	for _, item := range cart {
		cost, ok := s.fulfillItem(ctx, logger, order, item)
		totalCost = totalCost.Add(cost)
		if ok {
			fulfilled++
		} else {
			skipped++
		}
	}

	if err := ctx.Err(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("timeout").Inc()
		logger.Error("Fulfillment interrupted, order left in processing", zap.Error(err))
		return nil, fmt.Errorf("fulfillment of order %s interrupted: %w", order.ID, err)
	}

	revenue := &models.RevenueLog{
		OrderID:          order.ID,
		Amount:           order.TotalAmount,
		CostAmount:       totalCost,
		PaymentMethod:    data.Channel,
		PaymentReference: reference,
		Notes:            fmt.Sprintf("Paystack payment: %s", data.GatewayResponse),
	}
	if err := s.store.CreateRevenueLog(ctx, revenue); err != nil {
		util.RevenueLogFailuresTotal.Inc()
		s.reportAnomaly(ctx, logger, order, "", models.AnomalyRevenueLogFailed, err)
	}

	if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted); err != nil {
		s.reportAnomaly(ctx, logger, order, "", models.AnomalyOrderFinalizeFailed, err)
	} else {
		order.Status = models.OrderStatusCompleted
	}

	if s.cache != nil {
		if err := s.cache.MarkReferenceProcessed(ctx, reference, order.ID, s.cfg.ProcessedTTL); err != nil {
			logger.Warn("Failed to set processed marker", zap.Error(err))
		}
	}

	util.OrdersFulfilledTotal.Inc()
	s.publishOrderFulfilled(ctx, logger, order, totalCost, fulfilled, skipped)

	logger.Info("Order fulfilled",
		zap.Int("items_fulfilled", fulfilled),
		zap.Int("items_skipped", skipped),
		zap.String("cost_amount", totalCost.String()))

	return &WebhookResult{
		Outcome:        OutcomeProcessed,
		Message:        "Order processed successfully",
		OrderID:        order.ID,
		ItemsFulfilled: fulfilled,
		ItemsSkipped:   skipped,
	}, nil
}

// fulfillItem applies one cart line. It returns the cost of goods for the
// line and whether the product was found. Failures past the product lookup
// are logged and do not stop the line or the order.
func (s *FulfillmentService) fulfillItem(ctx context.Context, logger *zap.Logger, order *models.Order, item models.CartItem) (decimal.Decimal, bool) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.fulfillItem")
	defer span.End()

	logger = logger.With(zap.String("product_id", item.ProductID), zap.Int("quantity", item.Quantity))

	if item.ProductID == "" || item.Quantity <= 0 {
		util.FulfillmentItemFailuresTotal.WithLabelValues(models.AnomalyInvalidCartItem).Inc()
		s.reportAnomaly(ctx, logger, order, item.ProductID, models.AnomalyInvalidCartItem,
			fmt.Errorf("invalid cart line: product_id=%q quantity=%d", item.ProductID, item.Quantity))
		return decimal.Zero, false
	}

	product, err := s.store.GetProductByID(ctx, item.ProductID)
	if err != nil {
		kind := models.AnomalyProductLookupFailed
		if errors.Is(err, store.ErrNotFound) {
			kind = models.AnomalyProductMissing
		}
		util.FulfillmentItemFailuresTotal.WithLabelValues(kind).Inc()
		s.reportAnomaly(ctx, logger, order, item.ProductID, kind, err)
		return decimal.Zero, false
	}

	quantity := decimal.NewFromInt(int64(item.Quantity))
	unitsSold := product.ActualUnits(item.Quantity)

	orderItem := &models.OrderItem{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    item.Quantity,
		UnitPrice:   product.Price,
		TotalPrice:  product.Price.Mul(quantity),
	}
	if err := s.store.CreateOrderItem(ctx, orderItem); err != nil {
		util.FulfillmentItemFailuresTotal.WithLabelValues(models.AnomalyItemInsertFailed).Inc()
		s.reportAnomaly(ctx, logger, order, product.ID, models.AnomalyItemInsertFailed, err)
	}

	change, err := s.store.DecrementStock(ctx, product.ID, item.Quantity)
	if err != nil {
		util.FulfillmentItemFailuresTotal.WithLabelValues(models.AnomalyStockUpdateFailed).Inc()
		s.reportAnomaly(ctx, logger, order, product.ID, models.AnomalyStockUpdateFailed, err)
	} else {
		if change.Clamped(item.Quantity) {
			util.StockFloorClampedTotal.Inc()
			s.reportAnomaly(ctx, logger, order, product.ID, models.AnomalyStockFloorClamped,
				fmt.Errorf("sold %d with only %d in stock", item.Quantity, change.PreviousStock))
		}
		s.recordStockChange(ctx, logger, order, product.ID, change, unitsSold)
	}

	return product.CostPrice.Mul(quantity), true
}

func (s *FulfillmentService) recordStockChange(ctx context.Context, logger *zap.Logger, order *models.Order, productID string, change store.StockChange, unitsSold int) {
	entry, err := models.NewStockAdjustmentLog(productID,
		models.StockSnapshot{StockQuantity: change.PreviousStock},
		models.StockSnapshot{StockQuantity: change.NewStock, UnitsSold: unitsSold})
	if err == nil {
		err = s.store.CreateInventoryLog(ctx, entry)
	}
	if err != nil {
		util.FulfillmentItemFailuresTotal.WithLabelValues(models.AnomalyInventoryLogFailed).Inc()
		s.reportAnomaly(ctx, logger, order, productID, models.AnomalyInventoryLogFailed, err)
	}

	if s.publisher == nil {
		return
	}
	event := &models.StockAdjustedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeStockAdjusted),
		ProductID:     productID,
		OrderID:       order.ID,
		PreviousStock: change.PreviousStock,
		NewStock:      change.NewStock,
		UnitsSold:     unitsSold,
	}
	if err := s.publisher.PublishStockAdjusted(ctx, event); err != nil {
		logger.Warn("Failed to publish StockAdjusted event", zap.Error(err))
	}
}

func (s *FulfillmentService) publishOrderFulfilled(ctx context.Context, logger *zap.Logger, order *models.Order, cost decimal.Decimal, fulfilled, skipped int) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderFulfilledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderFulfilled),
		OrderID:     order.ID,
		Reference:   order.PaystackReference,
		TotalAmount: order.TotalAmount,
		CostAmount:  cost,
		ItemCount:   fulfilled,
		Skipped:     skipped,
	}
	if err := s.publisher.PublishOrderFulfilled(ctx, event); err != nil {
		logger.Warn("Failed to publish OrderFulfilled event", zap.Error(err))
	}
}

// reportAnomaly logs a swallowed failure and forwards it for reconciliation
func (s *FulfillmentService) reportAnomaly(ctx context.Context, logger *zap.Logger, order *models.Order, productID, kind string, cause error) {
	logger.Error("Fulfillment anomaly", zap.String("kind", kind), zap.Error(cause))

	if s.publisher == nil {
		return
	}
	event := &models.FulfillmentAnomalyEvent{
		BaseEvent: newBaseEvent(models.EventTypeFulfillmentAnomaly),
		OrderID:   order.ID,
		Reference: order.PaystackReference,
		ProductID: productID,
		Kind:      kind,
		Detail:    cause.Error(),
	}
	if err := s.publisher.PublishFulfillmentAnomaly(ctx, event); err != nil {
		logger.Warn("Failed to publish FulfillmentAnomaly event", zap.Error(err))
	}
}

func (s *FulfillmentService) duplicate(logger *zap.Logger, detectedBy, orderID string) *WebhookResult {
	util.DuplicateDeliveriesTotal.WithLabelValues(detectedBy).Inc()
	logger.Info("Duplicate delivery acknowledged", zap.String("detected_by", detectedBy), zap.String("order_id", orderID))
	return &WebhookResult{Outcome: OutcomeDuplicate, Message: "Order already processed", OrderID: orderID}
}

func (s *FulfillmentService) releaseClaim(logger *zap.Logger, reference string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.ReleaseReference(ctx, reference); err != nil {
		logger.Warn("Failed to release reference claim", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrSecretNotConfigured):
		return "secret_not_configured"
	default:
		return "other"
	}
}
