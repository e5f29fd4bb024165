package service

import (
	"context"
	"errors"
	"fmt"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/store"
	"paystack-fulfillment/internal/util"

	"go.uber.org/zap"
)

// OrderReader is the read side of the order tables
type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByPaystackReference(ctx context.Context, reference string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetRevenueLogByOrderID(ctx context.Context, orderID string) (*models.RevenueLog, error)
}

// OrderService serves order lookups for the back office
type OrderService struct {
	store  OrderReader
	logger *zap.Logger
}

// OrderDetails is an order with its lines and ledger entry
type OrderDetails struct {
	Order   *models.Order      `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Revenue *models.RevenueLog `json:"revenue,omitempty"`
}

// NewOrderService creates a new order service
func NewOrderService(store OrderReader) *OrderService {
	return &OrderService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, order)
}

// GetOrderByReference retrieves the order created for a gateway reference
func (s *OrderService) GetOrderByReference(ctx context.Context, reference string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderByReference")
	defer span.End()

	order, err := s.store.GetOrderByPaystackReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order for reference %s: %w", reference, store.ErrNotFound)
	}
	return s.details(ctx, order)
}

func (s *OrderService) details(ctx context.Context, order *models.Order) (*OrderDetails, error) {
	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	revenue, err := s.store.GetRevenueLogByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("Failed to get revenue log", zap.String("order_id", order.ID), zap.Error(err))
	}

	return &OrderDetails{Order: order, Items: items, Revenue: revenue}, nil
}
