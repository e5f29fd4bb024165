package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the subset of Producer used by EventPublisher
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderFulfilled publishes OrderFulfilled event
func (ep *EventPublisher) PublishOrderFulfilled(ctx context.Context, event *models.OrderFulfilledEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.Reference, event)
}

// PublishStockAdjusted publishes StockAdjusted event, keyed by product so
// adjustments of one product stay ordered
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, "product-"+event.ProductID, event)
}

// PublishFulfillmentAnomaly publishes FulfillmentAnomaly event
func (ep *EventPublisher) PublishFulfillmentAnomaly(ctx context.Context, event *models.FulfillmentAnomalyEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.Reference, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onStockAdjusted      func(context.Context, *models.StockAdjustedEvent) error
	onFulfillmentAnomaly func(context.Context, *models.FulfillmentAnomalyEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStockAdjusted registers a handler for StockAdjusted events
func (eh *EventHandler) OnStockAdjusted(handler func(context.Context, *models.StockAdjustedEvent) error) {
	eh.onStockAdjusted = handler
}

// OnFulfillmentAnomaly registers a handler for FulfillmentAnomaly events
func (eh *EventHandler) OnFulfillmentAnomaly(handler func(context.Context, *models.FulfillmentAnomalyEvent) error) {
	eh.onFulfillmentAnomaly = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeStockAdjusted:
		if eh.onStockAdjusted != nil {
			var event models.StockAdjustedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockAdjusted event: %w", err)
			}
			return eh.onStockAdjusted(ctx, &event)
		}

	case models.EventTypeFulfillmentAnomaly:
		if eh.onFulfillmentAnomaly != nil {
			var event models.FulfillmentAnomalyEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal FulfillmentAnomaly event: %w", err)
			}
			return eh.onFulfillmentAnomaly(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type",
			zap.String("type", baseEvent.EventType),
			zap.String("id", baseEvent.EventID))
	}

	return nil
}
