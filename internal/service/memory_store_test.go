package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/redisclient"
	"paystack-fulfillment/internal/store"

	"github.com/google/uuid"
)

var errInjected = errors.New("injected failure")

// memoryStore mirrors the Postgres store rules that matter to the pipeline:
// unique paystack_reference and stock floored at zero.
type memoryStore struct {
	mu sync.Mutex

	products      map[string]models.Product
	orders        map[string]*models.Order
	orderItems    []models.OrderItem
	inventoryLogs []models.InventoryLog
	revenueLogs   []models.RevenueLog
	writes        int

	hideExisting     bool
	failCreateOrder  error
	failItemInsert   map[string]bool
	failStockUpdate  map[string]bool
	failRevenueLog   bool
	failUpdateStatus bool
}

func newMemoryStore(products ...models.Product) *memoryStore {
	s := &memoryStore{
		products:        make(map[string]models.Product),
		orders:          make(map[string]*models.Order),
		failItemInsert:  make(map[string]bool),
		failStockUpdate: make(map[string]bool),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memoryStore) GetOrderByPaystackReference(_ context.Context, reference string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hideExisting {
		return nil, nil
	}
	for _, o := range s.orders {
		if o.PaystackReference == reference {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *memoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreateOrder != nil {
		return s.failCreateOrder
	}
	for _, o := range s.orders {
		if o.PaystackReference == order.PaystackReference {
			return fmt.Errorf("reference %s: %w", order.PaystackReference, store.ErrDuplicateReference)
		}
	}
	order.ID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	s.orders[order.ID] = &cp
	s.writes++
	return nil
}

func (s *memoryStore) UpdateOrderStatus(_ context.Context, orderID string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdateStatus {
		return errInjected
	}
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	s.writes++
	return nil
}

func (s *memoryStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (s *memoryStore) GetProducts(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *memoryStore) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failItemInsert[item.ProductID] {
		return errInjected
	}
	item.ID = uuid.New().String()
	s.orderItems = append(s.orderItems, *item)
	s.writes++
	return nil
}

func (s *memoryStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.OrderItem
	for _, it := range s.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memoryStore) DecrementStock(_ context.Context, productID string, quantity int) (store.StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failStockUpdate[productID] {
		return store.StockChange{}, errInjected
	}
	p, ok := s.products[productID]
	if !ok {
		return store.StockChange{}, store.ErrNotFound
	}
	change := store.StockChange{PreviousStock: p.StockQuantity}
	p.StockQuantity -= quantity
	if p.StockQuantity < 0 {
		p.StockQuantity = 0
	}
	change.NewStock = p.StockQuantity
	s.products[productID] = p
	s.writes++
	return change, nil
}

func (s *memoryStore) CreateInventoryLog(_ context.Context, entry *models.InventoryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inventoryLogs = append(s.inventoryLogs, *entry)
	s.writes++
	return nil
}

func (s *memoryStore) CreateRevenueLog(_ context.Context, entry *models.RevenueLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRevenueLog {
		return errInjected
	}
	entry.ID = uuid.New().String()
	entry.Profit = entry.Amount.Sub(entry.CostAmount)
	s.revenueLogs = append(s.revenueLogs, *entry)
	s.writes++
	return nil
}

func (s *memoryStore) GetRevenueLogByOrderID(_ context.Context, orderID string) (*models.RevenueLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.revenueLogs {
		if r.OrderID == orderID {
			cp := r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memoryStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memoryStore) stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].StockQuantity
}

func (s *memoryStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// memoryCache implements ReferenceCache and StockCache
type memoryCache struct {
	mu        sync.Mutex
	claims    map[string]bool
	processed map[string]string
	stock     map[string]int
	err       error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		claims:    make(map[string]bool),
		processed: make(map[string]string),
		stock:     make(map[string]int),
	}
}

func (c *memoryCache) ClaimReference(_ context.Context, reference string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.claims[reference] {
		return false, nil
	}
	c.claims[reference] = true
	return true, nil
}

func (c *memoryCache) ReleaseReference(_ context.Context, reference string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, reference)
	return c.err
}

func (c *memoryCache) MarkReferenceProcessed(_ context.Context, reference, orderID string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.processed[reference] = orderID
	return nil
}

func (c *memoryCache) IsReferenceProcessed(_ context.Context, reference string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.processed[reference]
	return ok, nil
}

func (c *memoryCache) SetStock(_ context.Context, productID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.stock[productID] = quantity
	return nil
}

func (c *memoryCache) GetStock(_ context.Context, productID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	qty, ok := c.stock[productID]
	if !ok {
		return 0, redisclient.ErrCacheMiss
	}
	return qty, nil
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu        sync.Mutex
	fulfilled []*models.OrderFulfilledEvent
	adjusted  []*models.StockAdjustedEvent
	anomalies []*models.FulfillmentAnomalyEvent
}

func (p *recordingPublisher) PublishOrderFulfilled(_ context.Context, e *models.OrderFulfilledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fulfilled = append(p.fulfilled, e)
	return nil
}

func (p *recordingPublisher) PublishStockAdjusted(_ context.Context, e *models.StockAdjustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adjusted = append(p.adjusted, e)
	return nil
}

func (p *recordingPublisher) PublishFulfillmentAnomaly(_ context.Context, e *models.FulfillmentAnomalyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.anomalies = append(p.anomalies, e)
	return nil
}

func (p *recordingPublisher) anomalyKinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.anomalies))
	for _, a := range p.anomalies {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}
